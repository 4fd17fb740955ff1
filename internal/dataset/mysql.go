package dataset

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// MySQLSource loads customer records for one window from a MySQL table with
// the canonical column set.
type MySQLSource struct {
	DSN    string
	Table  string
	Window Window
}

func (s MySQLSource) Load(ctx context.Context) ([]CustomerRecord, error) {
	if !tableNamePattern.MatchString(s.Table) {
		return nil, &ValidationError{Field: "table", Row: -1,
			Reason: fmt.Sprintf("table name %q is not a plain identifier", s.Table)}
	}

	db, err := sql.Open("mysql", ensureParseTime(s.DSN))
	if err != nil {
		return nil, fmt.Errorf("open mysql source: %w", err)
	}
	defer db.Close()

	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("mysql source unreachable: %w", err)
	}

	query := fmt.Sprintf(`SELECT user_id, cart_abandoned_date, last_order_date,
		avg_order_value, sessions_last_30d, num_cart_items,
		engagement_score, profitability_score, class_label, region
		FROM %s
		WHERE cart_abandoned_date >= ? AND cart_abandoned_date < ?
		ORDER BY user_id`, s.Table)

	rows, err := db.QueryContext(ctx, query, s.Window.Start, s.Window.End.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer rows.Close()

	var out []CustomerRecord
	for rows.Next() {
		var (
			rec       CustomerRecord
			lastOrder sql.NullTime
			archetype sql.NullString
			region    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.AbandonedAt, &lastOrder,
			&rec.AOV, &rec.Sessions, &rec.CartItems,
			&rec.Engagement, &rec.Profitability, &archetype, &region); err != nil {
			return nil, fmt.Errorf("scan %s: %w", s.Table, err)
		}
		if lastOrder.Valid {
			t := lastOrder.Time
			rec.LastOrderAt = &t
		}
		rec.Archetype = archetype.String
		rec.Region = region.String
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", s.Table, err)
	}

	log.Debug().Str("table", s.Table).Str("window", s.Window.Key()).
		Int("records", len(out)).Msg("Loaded customer records from MySQL")
	return out, nil
}

// ensureParseTime makes the driver return DATE/DATETIME columns as time.Time.
func ensureParseTime(dsn string) string {
	if strings.Contains(dsn, "parseTime") {
		return dsn
	}
	if strings.Contains(dsn, "?") {
		return dsn + "&parseTime=true"
	}
	return dsn + "?parseTime=true"
}
