// tessql is a one-shot SQL shell for TessDB databases. It opens a single
// connection, runs each SQL argument in order, and renders row-returning
// statements as tables.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	flags "github.com/jessevdk/go-flags"
	"github.com/olekukonko/tablewriter"
	log "github.com/sirupsen/logrus"

	"go.tessdb.dev/client/driver"
	"go.tessdb.dev/client/engine/sqlite"
)

type config struct {
	DB driver.Config `group:"Database" namespace:"db"`

	Timeout time.Duration `long:"timeout" default:"0s" description:"Abandon a statement still running after this duration (0 never)"`

	Log struct {
		Level string `long:"level" default:"warn" choice:"trace" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Logging level"`
	} `group:"Logging" namespace:"log"`
}

func main() {
	var cfg config
	var parser = flags.NewParser(&cfg, flags.Default)
	parser.Usage = "[OPTIONS] SQL [SQL ...]"

	var stmts, err = parser.Parse()
	if err != nil {
		os.Exit(1) // Parser already printed the error.
	}
	if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil {
		log.SetLevel(lvl)
	}
	if len(stmts) == 0 {
		log.Fatal("no SQL statements to run")
	}

	conn, err := driver.OpenConnection(sqlite.New(), cfg.DB)
	if err != nil {
		log.WithField("err", err).Fatal("failed to open connection")
	}
	defer conn.Close()

	for _, sql := range stmts {
		if err = run(conn, sql, cfg.Timeout); err != nil {
			log.WithFields(log.Fields{"sql": sql, "err": err}).Fatal("statement failed")
		}
	}
}

func run(conn *driver.Connection, sql string, timeout time.Duration) error {
	var ctx = context.Background()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var cmd = conn.Command(sql)

	// Probe the statement's shape: a cursor is not executed until its
	// first Next, so a zero-column statement can be re-run as a
	// non-query to obtain its affected-row count.
	var rows, err = cmd.ExecuteCursorContext(ctx)
	if err != nil {
		return err
	}
	if rows.ColumnCount() == 0 {
		if err = rows.Close(); err != nil {
			return err
		}
		var res driver.ExecResult
		if res, err = cmd.ExecuteNonQueryContext(ctx); err != nil {
			return err
		}
		fmt.Printf("OK, %d rows affected\n", res.RowsAffected)
		return nil
	}
	defer rows.Close()

	var records [][]string
	for {
		var ok bool
		if ok, err = rows.Next(); err != nil {
			return err
		} else if !ok {
			break
		}
		var vals, _ = rows.Values()
		var cells = make([]string, len(vals))
		for i, v := range vals {
			cells[i] = renderValue(v)
		}
		records = append(records, cells)
	}
	if err = renderTable(os.Stdout, rows.Columns(), records); err != nil {
		return err
	}
	fmt.Printf("(%d rows)\n", len(records))
	return rows.Close()
}

func renderTable(out io.Writer, columns []string, records [][]string) error {
	var table = tablewriter.NewWriter(out)
	table.Header(columns)

	for _, r := range records {
		if err := table.Append(r); err != nil {
			return err
		}
	}
	return table.Render()
}

func renderValue(v interface{}) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return fmt.Sprintf("x'%x'", v)
	default:
		return fmt.Sprint(v)
	}
}
