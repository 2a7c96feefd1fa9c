package driver

import (
	log "github.com/sirupsen/logrus"

	"go.tessdb.dev/client/engine"
)

// ParamType is the declared logical type of a Param, selecting which bind
// operation carries its value to the engine.
type ParamType int

const (
	// ParamAuto infers the bind operation from the Go type of the value.
	ParamAuto ParamType = iota
	ParamInteger
	ParamReal
	ParamText
	ParamBlob
)

// Param is one ordered parameter of a Command.
type Param struct {
	// Name of a named marker, including its prefix (eg ":id"). Params
	// with an empty Name bind by their position in the Command's
	// parameter list.
	Name string
	// Type selects the bind operation.
	Type ParamType
	// Value to bind. A nil Value binds NULL regardless of Type. Blob
	// values are caller-owned buffers, valid only for the duration of
	// the execution call.
	Value interface{}
}

// Command is an executable SQL text plus its ordered parameters. A
// Command may optionally hold a private prepared statement via Prepare;
// for executions using it, the shared statement cache is bypassed.
// Commands are created from a Connection and are valid only while that
// Connection remains open.
type Command struct {
	conn    *Connection
	text    string
	params  []Param
	stmt    engine.Stmt // private prepared statement, owned by the Command
	noCache bool
}

// Command returns a new Command with the given text.
func (c *Connection) Command(text string) *Command {
	return &Command{conn: c, text: text}
}

// Text returns the Command's current SQL text.
func (cmd *Command) Text() string { return cmd.text }

// SetText replaces the Command's SQL text. A private prepared statement
// compiled from prior text is released.
func (cmd *Command) SetText(text string) {
	if cmd.stmt != nil {
		cmd.releaseOwn()
	}
	cmd.text = text
}

// Bind appends positionally-bound parameters with inferred types.
func (cmd *Command) Bind(values ...interface{}) *Command {
	for _, v := range values {
		cmd.params = append(cmd.params, Param{Value: v})
	}
	return cmd
}

// BindNamed appends a parameter bound to the named marker, which must
// include its prefix (eg ":id").
func (cmd *Command) BindNamed(name string, value interface{}) *Command {
	cmd.params = append(cmd.params, Param{Name: name, Value: value})
	return cmd
}

// BindParam appends a fully-specified parameter.
func (cmd *Command) BindParam(p Param) *Command {
	cmd.params = append(cmd.params, p)
	return cmd
}

// ClearParams drops all parameters.
func (cmd *Command) ClearParams() { cmd.params = cmd.params[:0] }

// SetCaching toggles this Command's participation in the shared statement
// cache. Caching also requires that it be enabled on the Connection.
func (cmd *Command) SetCaching(enabled bool) { cmd.noCache = !enabled }

// Prepare compiles the Command's text into a private prepared statement,
// owned by the Command and reused across its executions. Prepare is a
// no-op if the Command is already prepared.
func (cmd *Command) Prepare() error {
	if cmd.stmt != nil {
		return nil
	}
	if err := cmd.validate(); err != nil {
		return err
	}
	var st, err = cmd.conn.conn.Prepare(cmd.text)
	if err != nil {
		return engineErr(cmd.text, err)
	}
	cmd.stmt = st
	return nil
}

// Close releases the Command's private prepared statement, if any. It is
// idempotent and never fails; Commands which were never prepared need not
// be closed.
func (cmd *Command) Close() {
	if cmd.stmt != nil {
		cmd.releaseOwn()
	}
}

func (cmd *Command) releaseOwn() {
	if err := cmd.stmt.Finalize(); err != nil {
		log.WithFields(log.Fields{
			"sql": cmd.text,
			"err": err,
		}).Warn("failed to finalize prepared statement")
	}
	cmd.stmt = nil
}
