// migrations хранит SQL-схему PostgreSQL и отдаёт её через embed.FS,
// чтобы хранилище могло применить схему при старте (db.migrate: true).
package migrations

import "embed"

// InitUsersUp — имя миграции, создающей таблицу users.
const InitUsersUp = "1_init_users.up.sql"

//go:embed *.sql
var FS embed.FS
