// postgres.go — Postgres implementation of the Store interface.
//
// Queries run against the pre-existing catalog schema maintained by the
// ingestion pipelines: bibles, bible_filesets, bible_fileset_connections,
// access_groups, access_group_filesets, access_group_api_keys,
// geo_access_rules, chapter_files, bandwidth_variants, media_segments.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/versecast/versecast/internal/fileset"
)

// Postgres implements Store against a *sql.DB.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open connection pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Connect opens and verifies a Postgres connection.
func Connect(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(15)
	db.SetMaxIdleConns(5)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

const filesetColumns = `
	f.id, f.hash_id, f.set_type_code, f.set_size_code, f.asset_id,
	COALESCE(c.bible_id, ''), COALESCE(b.language_iso, ''), COALESCE(f.licensor, '')`

const filesetFrom = `
	FROM bible_filesets f
	LEFT JOIN bible_fileset_connections c ON c.hash_id = f.hash_id
	LEFT JOIN bibles b ON b.id = c.bible_id`

func scanFilesets(rows *sql.Rows) ([]fileset.Fileset, error) {
	defer rows.Close()
	var out []fileset.Fileset
	for rows.Next() {
		var f fileset.Fileset
		if err := rows.Scan(&f.ID, &f.HashID, &f.SetTypeCode, &f.SetSizeCode,
			&f.AssetID, &f.BibleID, &f.LanguageISO, &f.Licensor); err != nil {
			return nil, fmt.Errorf("scan fileset: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (p *Postgres) FindFilesetsByID(ctx context.Context, id string) ([]fileset.Fileset, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+filesetColumns+filesetFrom+` WHERE f.id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("filesets by id: %w", err)
	}
	return scanFilesets(rows)
}

func (p *Postgres) FindFilesetsByIDPrefix(ctx context.Context, prefix string) ([]fileset.Fileset, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+filesetColumns+filesetFrom+` WHERE f.id LIKE $1 || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("filesets by prefix: %w", err)
	}
	return scanFilesets(rows)
}

func (p *Postgres) ListFilesetsByBiblePrefix(ctx context.Context, prefix string) ([]fileset.Fileset, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+filesetColumns+filesetFrom+` WHERE c.bible_id LIKE $1 || '%'`, prefix)
	if err != nil {
		return nil, fmt.Errorf("filesets by bible prefix: %w", err)
	}
	return scanFilesets(rows)
}

func (p *Postgres) FindBible(ctx context.Context, bibleID string) (*Bible, error) {
	var b Bible
	err := p.db.QueryRowContext(ctx, `
		SELECT id, COALESCE(language_iso,''), COALESCE(version_name,''), COALESCE(numeral_system,'')
		FROM bibles WHERE id = $1`, bibleID).
		Scan(&b.ID, &b.LanguageISO, &b.VersionName, &b.NumeralSystem)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find bible: %w", err)
	}
	return &b, nil
}

func (p *Postgres) ListFilesetsForBible(ctx context.Context, bibleID string) ([]fileset.Fileset, error) {
	rows, err := p.db.QueryContext(ctx,
		`SELECT `+filesetColumns+filesetFrom+` WHERE c.bible_id = $1`, bibleID)
	if err != nil {
		return nil, fmt.Errorf("filesets for bible: %w", err)
	}
	return scanFilesets(rows)
}

func (p *Postgres) ListAccessGroupsForKey(ctx context.Context, key string) ([]int64, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT gk.access_group_id
		FROM access_group_api_keys gk
		JOIN api_keys k ON k.id = gk.key_id
		WHERE k.key = $1 AND k.deleted_at IS NULL`, key)
	if err != nil {
		return nil, fmt.Errorf("access groups for key: %w", err)
	}
	defer rows.Close()
	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan access group: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (p *Postgres) FindGeoAccessGroup(ctx context.Context, countryCode, continentCode string) (int64, bool, error) {
	// Country rule wins over continent rule; rule type is fixed to "api"
	// (other rule types gate the admin pipeline, not this service).
	var groupID int64
	err := p.db.QueryRowContext(ctx, `
		SELECT access_group_id FROM geo_access_rules
		WHERE rule_type = 'api' AND country_code = $1
		LIMIT 1`, countryCode).Scan(&groupID)
	if err == nil {
		return groupID, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("geo rule by country: %w", err)
	}
	err = p.db.QueryRowContext(ctx, `
		SELECT access_group_id FROM geo_access_rules
		WHERE rule_type = 'api' AND country_code IS NULL AND continent_code = $1
		LIMIT 1`, continentCode).Scan(&groupID)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("geo rule by continent: %w", err)
	}
	return groupID, true, nil
}

func (p *Postgres) ListPermittedHashIDs(ctx context.Context, groupIDs []int64) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	if len(groupIDs) == 0 {
		return out, nil
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT hash_id FROM access_group_filesets
		WHERE access_group_id = ANY($1)`, pq.Array(groupIDs))
	if err != nil {
		return nil, fmt.Errorf("permitted hash ids: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("scan hash id: %w", err)
		}
		out[h] = struct{}{}
	}
	return out, rows.Err()
}

func (p *Postgres) HashPermitted(ctx context.Context, hashID string, groupIDs []int64) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}
	var exists bool
	err := p.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM access_group_filesets
			WHERE hash_id = $1 AND access_group_id = ANY($2))`,
		hashID, pq.Array(groupIDs)).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("hash permitted: %w", err)
	}
	return exists, nil
}

func (p *Postgres) ListDownloadable(ctx context.Context, groupIDs []int64, limit, offset int) ([]DownloadableFileset, error) {
	if len(groupIDs) == 0 {
		return nil, nil
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT f.id, f.set_type_code, COALESCE(b.language_iso,''), COALESCE(f.licensor,'')
		FROM access_group_filesets agf
		JOIN bible_filesets f ON f.hash_id = agf.hash_id
		LEFT JOIN bible_fileset_connections c ON c.hash_id = f.hash_id
		LEFT JOIN bibles b ON b.id = c.bible_id
		WHERE agf.access_group_id = ANY($1)
		  AND f.set_type_code NOT LIKE '%_stream'
		ORDER BY f.id
		LIMIT $2 OFFSET $3`, pq.Array(groupIDs), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list downloadable: %w", err)
	}
	defer rows.Close()
	var out []DownloadableFileset
	for rows.Next() {
		var d DownloadableFileset
		if err := rows.Scan(&d.FilesetID, &d.Type, &d.LanguageISO, &d.Licensor); err != nil {
			return nil, fmt.Errorf("scan downloadable: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) ListChapterFiles(ctx context.Context, hashID, bookID string) ([]fileset.ChapterFile, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, hash_id, book_id, chapter_start, COALESCE(chapter_end, chapter_start),
		       COALESCE(verse_start, 0), COALESCE(verse_end, 0), COALESCE(duration, 0), file_name
		FROM chapter_files
		WHERE hash_id = $1 AND book_id = $2
		ORDER BY chapter_start, verse_start`, hashID, bookID)
	if err != nil {
		return nil, fmt.Errorf("chapter files: %w", err)
	}
	defer rows.Close()
	var out []fileset.ChapterFile
	for rows.Next() {
		var f fileset.ChapterFile
		if err := rows.Scan(&f.ID, &f.HashID, &f.BookID, &f.ChapterStart, &f.ChapterEnd,
			&f.VerseStart, &f.VerseEnd, &f.Duration, &f.FileName); err != nil {
			return nil, fmt.Errorf("scan chapter file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (p *Postgres) FindChapterFile(ctx context.Context, hashID, bookID string, chapter int) (*fileset.ChapterFile, error) {
	var f fileset.ChapterFile
	err := p.db.QueryRowContext(ctx, `
		SELECT id, hash_id, book_id, chapter_start, COALESCE(chapter_end, chapter_start),
		       COALESCE(verse_start, 0), COALESCE(verse_end, 0), COALESCE(duration, 0), file_name
		FROM chapter_files
		WHERE hash_id = $1 AND book_id = $2
		  AND chapter_start <= $3 AND COALESCE(chapter_end, chapter_start) >= $3
		ORDER BY chapter_start, verse_start
		LIMIT 1`, hashID, bookID, chapter).
		Scan(&f.ID, &f.HashID, &f.BookID, &f.ChapterStart, &f.ChapterEnd,
			&f.VerseStart, &f.VerseEnd, &f.Duration, &f.FileName)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find chapter file: %w", err)
	}
	return &f, nil
}

func (p *Postgres) ListBandwidthVariants(ctx context.Context, chapterFileID int64) ([]fileset.BandwidthVariant, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, chapter_file_id, file_name, bandwidth,
		       COALESCE(resolution_width, 0), COALESCE(resolution_height, 0), COALESCE(codec, '')
		FROM bandwidth_variants
		WHERE chapter_file_id = $1
		ORDER BY bandwidth`, chapterFileID)
	if err != nil {
		return nil, fmt.Errorf("bandwidth variants: %w", err)
	}
	defer rows.Close()
	var out []fileset.BandwidthVariant
	for rows.Next() {
		var v fileset.BandwidthVariant
		if err := rows.Scan(&v.ID, &v.ChapterFileID, &v.FileName, &v.Bandwidth,
			&v.ResolutionWidth, &v.ResolutionHeight, &v.Codec); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (p *Postgres) ListMediaSegments(ctx context.Context, variantID int64) ([]fileset.MediaSegment, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT variant_id, position, file_name, COALESCE(duration, 0)
		FROM media_segments
		WHERE variant_id = $1
		ORDER BY position`, variantID)
	if err != nil {
		return nil, fmt.Errorf("media segments: %w", err)
	}
	defer rows.Close()
	var out []fileset.MediaSegment
	for rows.Next() {
		var s fileset.MediaSegment
		if err := rows.Scan(&s.VariantID, &s.Position, &s.FileName, &s.Duration); err != nil {
			return nil, fmt.Errorf("scan segment: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
