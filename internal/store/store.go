package store

import (
	"context"
	"errors"
	"net/url"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/pkg/failure"
)

/*
Store is the transactional frontier and the single owner of page rows.

Responsibilities
- Admit discovered URLs as FRONTIER rows (idempotently, via the unique
  url constraint)
- Hand each FRONTIER row to exactly one worker (row lock + state flip
  in one transaction)
- Record exactly one terminal outcome per claimed row
- Persist sites, images, binary-document records, and duplicate links

The engine is the only caller; no other component sees page rows.
*/

type Store interface {
	Enqueue(ctx context.Context, urls []url.URL) failure.ClassifiedError
	PopFrontier(ctx context.Context) (PoppedPage, bool, failure.ClassifiedError)
	FinalizeHTML(ctx context.Context, pageID int64, siteID int64, status int, html []byte, hash string) failure.ClassifiedError
	FinalizeBinary(ctx context.Context, pageID int64, siteID int64, status int, dataType string) failure.ClassifiedError
	FinalizeDuplicate(ctx context.Context, pageID int64, siteID int64, status int, originalPageID int64) failure.ClassifiedError
	FinalizeFailed(ctx context.Context, pageID int64) failure.ClassifiedError
	CreateEmptyPage(ctx context.Context, pageURL string, siteID int64) (int64, bool, failure.ClassifiedError)
	GetSite(ctx context.Context, domain string) (Site, bool, failure.ClassifiedError)
	SaveSite(ctx context.Context, domain string, robotsContent string, sitemapContent string) (int64, failure.ClassifiedError)
	LookupHash(ctx context.Context, hash string) (DuplicateRef, bool, failure.ClassifiedError)
	SaveImages(ctx context.Context, pageID int64, images []ImageRow) failure.ClassifiedError
	SavePageData(ctx context.Context, pageID int64, dataType string) failure.ClassifiedError
	RequeueStale(ctx context.Context, olderThan time.Duration) (int64, failure.ClassifiedError)
}

type PgStore struct {
	pool         *pgxpool.Pool
	metadataSink metadata.MetadataSink
}

func NewPgStore(pool *pgxpool.Pool, metadataSink metadata.MetadataSink) *PgStore {
	return &PgStore{
		pool:         pool,
		metadataSink: metadataSink,
	}
}

// Enqueue inserts each canonical URL as a new FRONTIER page. URLs that
// already exist (any state) are silently discarded: uniqueness on url
// makes discovery idempotent.
func (s *PgStore) Enqueue(ctx context.Context, urls []url.URL) failure.ClassifiedError {
	for _, u := range urls {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO crawldb.page (url, page_type_code) VALUES ($1, $2)
			 ON CONFLICT (url) DO NOTHING`,
			u.String(), PageTypeFrontier,
		)
		if err != nil {
			return s.recordErr("Enqueue", ErrCauseQueryFailure, err,
				metadata.NewAttr(metadata.AttrURL, u.String()))
		}
	}
	return nil
}

// PopFrontier claims one frontier row: in a single transaction the row
// is locked, read, and flipped to CRAWLING. The second return value is
// false when the frontier is empty.
//
// SKIP LOCKED keeps a second worker from blocking on (and then losing)
// the row the first worker is claiming; it picks the next free row
// instead. Selection order is insertion order. The claim stamps
// accessed_time so RequeueStale can tell an old orphan from a row a
// live worker is still on.
func (s *PgStore) PopFrontier(ctx context.Context) (PoppedPage, bool, failure.ClassifiedError) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return PoppedPage{}, false, s.recordErr("PopFrontier", ErrCauseBeginTx, err)
	}
	defer tx.Rollback(ctx)

	var popped PoppedPage
	err = tx.QueryRow(ctx,
		`SELECT id, url FROM crawldb.page
		 WHERE page_type_code = $1
		 ORDER BY id
		 LIMIT 1
		 FOR UPDATE SKIP LOCKED`,
		PageTypeFrontier,
	).Scan(&popped.ID, &popped.URL)
	if errors.Is(err, pgx.ErrNoRows) {
		return PoppedPage{}, false, nil
	}
	if err != nil {
		return PoppedPage{}, false, s.recordErr("PopFrontier", ErrCauseQueryFailure, err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE crawldb.page SET page_type_code = $1, accessed_time = $2 WHERE id = $3`,
		PageTypeCrawling, time.Now(), popped.ID,
	); err != nil {
		return PoppedPage{}, false, s.recordErr("PopFrontier", ErrCauseQueryFailure, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return PoppedPage{}, false, s.recordErr("PopFrontier", ErrCauseCommitTx, err)
	}

	return popped, true, nil
}

// FinalizeHTML transitions CRAWLING → HTML with the rendered body and
// its content hash.
func (s *PgStore) FinalizeHTML(
	ctx context.Context,
	pageID int64,
	siteID int64,
	status int,
	html []byte,
	hash string,
) failure.ClassifiedError {
	_, err := s.pool.Exec(ctx,
		`UPDATE crawldb.page
		 SET page_type_code = $1, site_id = $2, http_status_code = $3,
		     html_content = $4, html_content_hash = $5, accessed_time = $6
		 WHERE id = $7`,
		PageTypeHTML, siteID, status, string(html), nullableHash(hash), time.Now(), pageID,
	)
	if err != nil {
		return s.recordErr("FinalizeHTML", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrPageID, itoa(pageID)))
	}
	s.metadataSink.RecordTransition(pageID, PageTypeHTML, nil)
	return nil
}

// FinalizeBinary transitions CRAWLING → BINARY and records the matching
// page_data row. The body is never stored.
func (s *PgStore) FinalizeBinary(
	ctx context.Context,
	pageID int64,
	siteID int64,
	status int,
	dataType string,
) failure.ClassifiedError {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.recordErr("FinalizeBinary", ErrCauseBeginTx, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE crawldb.page
		 SET page_type_code = $1, site_id = $2, http_status_code = $3, accessed_time = $4
		 WHERE id = $5`,
		PageTypeBinary, siteID, status, time.Now(), pageID,
	); err != nil {
		return s.recordErr("FinalizeBinary", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrPageID, itoa(pageID)))
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO crawldb.page_data (page_id, data_type_code) VALUES ($1, $2)`,
		pageID, dataType,
	); err != nil {
		return s.recordErr("FinalizeBinary", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrDataType, dataType))
	}

	if err := tx.Commit(ctx); err != nil {
		return s.recordErr("FinalizeBinary", ErrCauseCommitTx, err)
	}
	s.metadataSink.RecordTransition(pageID, PageTypeBinary, []metadata.Attribute{
		metadata.NewAttr(metadata.AttrDataType, dataType),
	})
	return nil
}

// FinalizeDuplicate transitions CRAWLING → DUPLICATE and links the row
// to the HTML original owning the content hash.
func (s *PgStore) FinalizeDuplicate(
	ctx context.Context,
	pageID int64,
	siteID int64,
	status int,
	originalPageID int64,
) failure.ClassifiedError {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.recordErr("FinalizeDuplicate", ErrCauseBeginTx, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE crawldb.page
		 SET page_type_code = $1, site_id = $2, http_status_code = $3, accessed_time = $4
		 WHERE id = $5`,
		PageTypeDuplicate, siteID, status, time.Now(), pageID,
	); err != nil {
		return s.recordErr("FinalizeDuplicate", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrPageID, itoa(pageID)))
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO crawldb.link (from_page, to_page) VALUES ($1, $2)
		 ON CONFLICT (from_page, to_page) DO NOTHING`,
		pageID, originalPageID,
	); err != nil {
		return s.recordErr("FinalizeDuplicate", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrPageID, itoa(pageID)))
	}

	if err := tx.Commit(ctx); err != nil {
		return s.recordErr("FinalizeDuplicate", ErrCauseCommitTx, err)
	}
	s.metadataSink.RecordTransition(pageID, PageTypeDuplicate, nil)
	return nil
}

// FinalizeFailed transitions CRAWLING → FAILED. Failed rows keep no
// body, status, or hash.
func (s *PgStore) FinalizeFailed(ctx context.Context, pageID int64) failure.ClassifiedError {
	_, err := s.pool.Exec(ctx,
		`UPDATE crawldb.page SET page_type_code = $1, accessed_time = $2 WHERE id = $3`,
		PageTypeFailed, time.Now(), pageID,
	)
	if err != nil {
		return s.recordErr("FinalizeFailed", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrPageID, itoa(pageID)))
	}
	s.metadataSink.RecordTransition(pageID, PageTypeFailed, nil)
	return nil
}

// CreateEmptyPage materializes the post-redirect target: a row for
// pageURL that the calling worker owns and must finalize. The second
// return value reports whether the caller got that ownership.
//
// When the URL already has a row, ownership depends on its state:
// a FRONTIER row is claimed here (locked and flipped to CRAWLING, the
// same discipline PopFrontier applies) so no other worker can pop it;
// a CRAWLING or terminal row belongs to another worker, past or
// present, and the caller must leave it untouched.
func (s *PgStore) CreateEmptyPage(ctx context.Context, pageURL string, siteID int64) (int64, bool, failure.ClassifiedError) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, false, s.recordErr("CreateEmptyPage", ErrCauseBeginTx, err)
	}
	defer tx.Rollback(ctx)

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO crawldb.page (url, site_id, page_type_code, accessed_time)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (url) DO NOTHING
		 RETURNING id`,
		pageURL, siteID, PageTypeCrawling, time.Now(),
	).Scan(&id)
	if err == nil {
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return 0, false, s.recordErr("CreateEmptyPage", ErrCauseCommitTx, commitErr)
		}
		return id, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, s.recordErr("CreateEmptyPage", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrURL, pageURL))
	}

	// The URL was discovered independently. Lock its row and take it
	// over only while it is still poppable.
	var pageType string
	err = tx.QueryRow(ctx,
		`SELECT id, page_type_code FROM crawldb.page
		 WHERE url = $1
		 FOR UPDATE`,
		pageURL,
	).Scan(&id, &pageType)
	if err != nil {
		return 0, false, s.recordErr("CreateEmptyPage", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrURL, pageURL))
	}

	if pageType != PageTypeFrontier {
		// another worker owns or owned this row
		if commitErr := tx.Commit(ctx); commitErr != nil {
			return 0, false, s.recordErr("CreateEmptyPage", ErrCauseCommitTx, commitErr)
		}
		return id, false, nil
	}

	if _, err := tx.Exec(ctx,
		`UPDATE crawldb.page SET page_type_code = $1, site_id = $2, accessed_time = $3 WHERE id = $4`,
		PageTypeCrawling, siteID, time.Now(), id,
	); err != nil {
		return 0, false, s.recordErr("CreateEmptyPage", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrURL, pageURL))
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, false, s.recordErr("CreateEmptyPage", ErrCauseCommitTx, err)
	}
	return id, true, nil
}

// GetSite looks a host up by domain. The second return value is false
// when the host has never been visited.
func (s *PgStore) GetSite(ctx context.Context, domain string) (Site, bool, failure.ClassifiedError) {
	var site Site
	err := s.pool.QueryRow(ctx,
		`SELECT id, domain, COALESCE(robots_content, ''), COALESCE(sitemap_content, '')
		 FROM crawldb.site WHERE domain = $1`,
		domain,
	).Scan(&site.ID, &site.Domain, &site.RobotsContent, &site.SitemapContent)
	if errors.Is(err, pgx.ErrNoRows) {
		return Site{}, false, nil
	}
	if err != nil {
		return Site{}, false, s.recordErr("GetSite", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrHost, domain))
	}
	return site, true, nil
}

// SaveSite persists a freshly observed host. Two workers racing on the
// same new host converge on one row via the domain unique constraint.
func (s *PgStore) SaveSite(
	ctx context.Context,
	domain string,
	robotsContent string,
	sitemapContent string,
) (int64, failure.ClassifiedError) {
	var id int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO crawldb.site (domain, robots_content, sitemap_content)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (domain) DO UPDATE SET domain = EXCLUDED.domain
		 RETURNING id`,
		domain, robotsContent, sitemapContent,
	).Scan(&id)
	if err != nil {
		return 0, s.recordErr("SaveSite", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrHost, domain))
	}
	return id, nil
}

// SaveImages attaches image metadata to the (possibly redirected) page.
func (s *PgStore) SaveImages(ctx context.Context, pageID int64, images []ImageRow) failure.ClassifiedError {
	for _, image := range images {
		_, err := s.pool.Exec(ctx,
			`INSERT INTO crawldb.image (page_id, filename, content_type, accessed_time)
			 VALUES ($1, $2, $3, $4)`,
			pageID, image.Filename, image.ContentType, image.AccessedAt,
		)
		if err != nil {
			return s.recordErr("SaveImages", ErrCauseQueryFailure, err,
				metadata.NewAttr(metadata.AttrPageID, itoa(pageID)))
		}
	}
	return nil
}

// SavePageData records one binary document reference discovered on (or
// being) the page.
func (s *PgStore) SavePageData(ctx context.Context, pageID int64, dataType string) failure.ClassifiedError {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crawldb.page_data (page_id, data_type_code) VALUES ($1, $2)`,
		pageID, dataType,
	)
	if err != nil {
		return s.recordErr("SavePageData", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrDataType, dataType))
	}
	return nil
}

// RequeueStale reverts CRAWLING rows older than the threshold back to
// FRONTIER. Run once at engine startup, it reclaims rows orphaned by a
// crashed worker in a previous run.
func (s *PgStore) RequeueStale(ctx context.Context, olderThan time.Duration) (int64, failure.ClassifiedError) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE crawldb.page
		 SET page_type_code = $1
		 WHERE page_type_code = $2
		   AND (accessed_time IS NULL OR accessed_time < $3)`,
		PageTypeFrontier, PageTypeCrawling, time.Now().Add(-olderThan),
	)
	if err != nil {
		return 0, s.recordErr("RequeueStale", ErrCauseQueryFailure, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PgStore) recordErr(action string, cause StorageErrorCause, err error, attrs ...metadata.Attribute) *StorageError {
	storageErr := &StorageError{
		Message:   err.Error(),
		Retryable: true,
		Cause:     cause,
	}
	s.metadataSink.RecordError(
		time.Now(),
		"store",
		"PgStore."+action,
		mapStorageErrorToMetadataCause(storageErr),
		storageErr.Message,
		attrs,
	)
	return storageErr
}

// nullableHash maps the empty hash to NULL so the html_content_hash
// index stays clean for the dedup lookup.
func nullableHash(hash string) interface{} {
	if hash == "" {
		return nil
	}
	return hash
}
