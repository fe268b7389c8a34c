// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq" // PostgreSQL 驱动

	"github.com/wfunc/getroasted/realtime"
)

// changeTables 需要发出变更通知的表, value is the column holding the battle id.
var changeTables = map[realtime.Table]string{
	realtime.TableBattles:      "id",
	realtime.TableParticipants: "battle_id",
	realtime.TableSpectators:   "battle_id",
	realtime.TableVotes:        "battle_id",
	realtime.TableRoasts:       "battle_id",
	realtime.TablePresence:     "battle_id",
}

// InstallChangeTriggers 安装 pg_notify 触发器
//
// Each write on a battle table sends {"table","op","battle_id"} on
// realtime.ChangeChannel, which the PQListener turns into realtime.Change values.
func InstallChangeTriggers(ctx context.Context, dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for table, column := range changeTables {
		for _, stmt := range triggerStatements(string(table), column) {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", table, err)
			}
		}
	}
	return tx.Commit()
}

func triggerStatements(table, column string) []string {
	fn := "notify_" + table + "_change"
	trigger := table + "_change_notify"
	return []string{
		fmt.Sprintf(`
        CREATE OR REPLACE FUNCTION %[1]s() RETURNS trigger AS $$
        DECLARE
            rec RECORD;
        BEGIN
            IF TG_OP = 'DELETE' THEN
                rec := OLD;
            ELSE
                rec := NEW;
            END IF;
            PERFORM pg_notify('%[2]s', json_build_object(
                'table', TG_TABLE_NAME,
                'op', TG_OP,
                'battle_id', rec.%[3]s
            )::text);
            RETURN rec;
        END;
        $$ LANGUAGE plpgsql`, fn, realtime.ChangeChannel, column),
		fmt.Sprintf(`DROP TRIGGER IF EXISTS %s ON %s`, trigger, table),
		fmt.Sprintf(`
        CREATE TRIGGER %s
        AFTER INSERT OR UPDATE OR DELETE ON %s
        FOR EACH ROW EXECUTE FUNCTION %s()`, trigger, table, fn),
	}
}
