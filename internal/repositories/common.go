package repositories

import (
	"database/sql"
	"strings"
	"time"

	intconfig "freight-backend/internal/config"
	intdb "freight-backend/internal/db"
)

func pick(d intdb.DBTX) intdb.DBTX {
	if d != nil {
		return d
	}
	if intconfig.DB != nil {
		return intconfig.DB
	}
	return nil
}

// placeholders returns "?,?,?" for n args.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringsOf[T ~string](values []T) []any {
	out := make([]any, 0, len(values))
	for _, v := range values {
		out = append(out, string(v))
	}
	return out
}
