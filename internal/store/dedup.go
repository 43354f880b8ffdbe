package store

import (
	"context"
	"errors"
	"strconv"

	"github.com/jackc/pgx/v5"

	"github.com/fri-wier/besela/internal/metadata"
	"github.com/fri-wier/besela/pkg/failure"
)

// LookupHash is the dedup index: it returns the first page row whose
// html_content_hash equals the given value. Rows enter the index
// implicitly when FinalizeHTML stores their hash; the second hit on the
// same hash becomes a DUPLICATE page pointing at the original.
func (s *PgStore) LookupHash(ctx context.Context, hash string) (DuplicateRef, bool, failure.ClassifiedError) {
	if hash == "" {
		return DuplicateRef{}, false, nil
	}

	var ref DuplicateRef
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(site_id, 0) FROM crawldb.page
		 WHERE html_content_hash = $1
		 ORDER BY id
		 LIMIT 1`,
		hash,
	).Scan(&ref.PageID, &ref.SiteID)
	if errors.Is(err, pgx.ErrNoRows) {
		return DuplicateRef{}, false, nil
	}
	if err != nil {
		return DuplicateRef{}, false, s.recordErr("LookupHash", ErrCauseQueryFailure, err,
			metadata.NewAttr(metadata.AttrHash, hash))
	}
	return ref, true, nil
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
