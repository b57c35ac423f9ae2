package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-booking/internal/common"
	"github.com/noah-isme/backend-booking/internal/db"
)

// Sort whitelists audit log ordering.
var Sort = common.SortSpec{
	Columns: map[string]string{
		"id":         "id",
		"created_at": "created_at",
		"status":     "status",
	},
	Default:     "created_at",
	DefaultDesc: true,
}

// Filter narrows audit listings.
type Filter struct {
	Actor        string
	ResourceType string
}

func (f Filter) where() (string, []any) {
	var conds []string
	var args []any
	if f.Actor != "" {
		args = append(args, f.Actor)
		conds = append(conds, fmt.Sprintf("actor_subject = $%d", len(args)))
	}
	if f.ResourceType != "" {
		args = append(args, f.ResourceType)
		conds = append(conds, fmt.Sprintf("resource_type = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// Store is the persistence contract for audit entries.
type Store interface {
	Insert(ctx context.Context, e Entry) error
	List(ctx context.Context, f Filter, p common.ListParams) ([]Entry, int64, error)
}

// PGStore implements Store on Postgres.
type PGStore struct {
	DB db.DBTX
}

const selectEntry = `
	SELECT id, actor_kind, actor_subject, action, resource_type, resource_id,
		method, path, route, status, ip, user_agent, request_id, metadata, created_at
	FROM audit_logs`

// Insert implements Store.
func (s PGStore) Insert(ctx context.Context, e Entry) error {
	var metadata any
	if len(e.Metadata) > 0 {
		metadata = []byte(e.Metadata)
	}
	_, err := s.DB.Exec(ctx, `
		INSERT INTO audit_logs (actor_kind, actor_subject, action, resource_type, resource_id,
			method, path, route, status, ip, user_agent, request_id, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		e.ActorKind, e.ActorSubject, e.Action, e.ResourceType, e.ResourceID,
		e.Method, e.Path, e.Route, e.Status, e.IP, e.UserAgent, e.RequestID, metadata)
	return err
}

// List implements Store.
func (s PGStore) List(ctx context.Context, f Filter, p common.ListParams) ([]Entry, int64, error) {
	where, args := f.where()
	var total int64
	if err := s.DB.QueryRow(ctx, `SELECT count(*) FROM audit_logs`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	sql := fmt.Sprintf(`%s%s ORDER BY %s LIMIT $%d OFFSET $%d`, selectEntry, where, p.OrderBy(), len(args)+1, len(args)+2)
	rows, err := s.DB.Query(ctx, sql, append(args, p.Limit, p.Offset())...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, e)
	}
	return out, total, rows.Err()
}

func scan(row pgx.Row) (Entry, error) {
	var e Entry
	var metadata []byte
	err := row.Scan(&e.ID, &e.ActorKind, &e.ActorSubject, &e.Action, &e.ResourceType, &e.ResourceID,
		&e.Method, &e.Path, &e.Route, &e.Status, &e.IP, &e.UserAgent, &e.RequestID, &metadata, &e.CreatedAt)
	if len(metadata) > 0 {
		e.Metadata = metadata
	}
	return e, err
}
