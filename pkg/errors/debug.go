package errors

import (
	stdErrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// maxDumpDepth bounds how many causes are recorded for one error.
const maxDumpDepth = 32

// ErrorDump is a log-friendly view of an error and its causes.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`
	Retryable  bool   `json:"retryable"`

	// Chain lists the error tree depth first; joined causes are indented.
	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{
		TopMessage: err.Error(),
		Code:       CodeOf(err),
		Retryable:  IsRetryable(err),
	}
	walk(err, 0, &d.Chain)

	var pgErr *pgconn.PgError
	if stdErrors.As(err, &pgErr) {
		d.PGCode = pgErr.Code
		d.PGConstraint = pgErr.ConstraintName
		d.PGTable = pgErr.TableName
		d.PGMessage = pgErr.Message
	}
	return d
}

func walk(err error, depth int, chain *[]string) {
	for e := err; e != nil && len(*chain) < maxDumpDepth; {
		*chain = append(*chain, fmt.Sprintf("%*s%T: %v", depth*2, "", e, e))
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, cause := range u.Unwrap() {
				walk(cause, depth+1, chain)
			}
			return
		case interface{ Unwrap() error }:
			e = u.Unwrap()
		default:
			return
		}
	}
}
