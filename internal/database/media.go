package database

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/kaidobit/mediacache/internal/crypto"
)

// MediaRepo stores binary media content keyed by (uri, format). Both key
// parts and the value pass through the codec before any SQL interaction,
// so the repository never knows whether encryption is configured.
type MediaRepo struct {
	log   zerolog.Logger
	db    *DB
	codec crypto.Codec
	now   func() time.Time
}

// NewMediaRepo creates a new media repository.
func NewMediaRepo(log zerolog.Logger, db *DB, codec crypto.Codec) *MediaRepo {
	return &MediaRepo{
		log:   log.With().Str("repo", "media").Logger(),
		db:    db,
		codec: codec,
		now:   time.Now,
	}
}

// Put inserts or wholly replaces the row for (uri, format) and stamps its
// last access time.
func (r *MediaRepo) Put(ctx context.Context, uri, format string, data []byte) error {
	value, err := r.codec.EncodeValue(data)
	if err != nil {
		return errors.Wrap(err, "error encoding value")
	}

	queryBuilder := r.db.squirrel.
		Replace(TableMedia).
		Columns("uri", "format", "data", "last_access").
		Values(
			r.codec.EncodeKey(TableMedia, []byte(uri)),
			r.codec.EncodeKey(TableMedia, []byte(format)),
			value,
			r.now().Unix(),
		)

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Put")

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing query")
	}

	return nil
}

// Get returns the content stored for (uri, format) and refreshes its last
// access time. The select and the timestamp update run in one transaction
// so no concurrent operation can observe one without the other. The second
// return value reports whether the row existed; a decode failure is an
// error, never a miss.
func (r *MediaRepo) Get(ctx context.Context, uri, format string) ([]byte, bool, error) {
	where := sq.Eq{
		"uri":    r.codec.EncodeKey(TableMedia, []byte(uri)),
		"format": r.codec.EncodeKey(TableMedia, []byte(format)),
	}

	selectQuery, selectArgs, err := r.db.squirrel.
		Select("data").
		From(TableMedia).
		Where(where).
		ToSql()
	if err != nil {
		return nil, false, errors.Wrap(err, "error building query")
	}

	updateQuery, updateArgs, err := r.db.squirrel.
		Update(TableMedia).
		Set("last_access", r.now().Unix()).
		Where(where).
		ToSql()
	if err != nil {
		return nil, false, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", selectQuery).Interface("args", selectArgs).Msg("Get")

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	var value []byte
	if err := tx.QueryRowContext(ctx, selectQuery, selectArgs...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "error executing query")
	}

	if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		return nil, false, errors.Wrap(err, "error updating last access")
	}

	if err := tx.Commit(); err != nil {
		return nil, false, errors.Wrap(err, "failed to commit transaction")
	}

	data, err := r.codec.DecodeValue(value)
	if err != nil {
		return nil, false, errors.Wrap(err, "error decoding value")
	}

	return data, true, nil
}

// Remove deletes the row for (uri, format); absent rows are not an error.
func (r *MediaRepo) Remove(ctx context.Context, uri, format string) error {
	queryBuilder := r.db.squirrel.
		Delete(TableMedia).
		Where(sq.Eq{
			"uri":    r.codec.EncodeKey(TableMedia, []byte(uri)),
			"format": r.codec.EncodeKey(TableMedia, []byte(format)),
		})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Remove")

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing delete query")
	}

	return nil
}

// RemoveAll deletes every row stored for uri, regardless of format.
func (r *MediaRepo) RemoveAll(ctx context.Context, uri string) error {
	queryBuilder := r.db.squirrel.
		Delete(TableMedia).
		Where(sq.Eq{"uri": r.codec.EncodeKey(TableMedia, []byte(uri))})

	query, args, err := queryBuilder.ToSql()
	if err != nil {
		return errors.Wrap(err, "error building delete query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("RemoveAll")

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrap(err, "error executing delete query")
	}

	return nil
}

// Count returns the number of cached rows. Eviction policies layered on
// top of the store combine this with the last_access index.
func (r *MediaRepo) Count(ctx context.Context) (int64, error) {
	query, args, err := r.db.squirrel.
		Select("COUNT(1)").
		From(TableMedia).
		ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "error building query")
	}

	r.log.Trace().Str("query", query).Interface("args", args).Msg("Count")

	conn, err := r.db.Acquire(ctx)
	if err != nil {
		return 0, err
	}
	defer conn.Close()

	var count int64
	if err := conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(err, "error executing query")
	}

	return count, nil
}
