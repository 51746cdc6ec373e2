// Package report renders the outcome of a run for humans.
package report

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/yoanbernabeu/frankenexec/internal/constants"
	"github.com/yoanbernabeu/frankenexec/internal/executor"
	"github.com/yoanbernabeu/frankenexec/internal/process"
)

//go:embed templates/*
var templatesFS embed.FS

var templates = template.Must(
	template.New("report").Funcs(template.FuncMap{"join": join}).ParseFS(templatesFS, "templates/*.tmpl"),
)

func join(sep string, items []string) string {
	return strings.Join(items, sep)
}

// Status classifies a single run for summaries
type Status string

// Run statuses
const (
	StatusPass        Status = "PASS"
	StatusFail        Status = "FAIL"
	StatusTimeout     Status = "TIMEOUT"
	StatusUnsupported Status = "UNSUPPORTED"
	StatusError       Status = "ERROR"
)

// StatusOf classifies the outcome of Executor.Run
func StatusOf(result *executor.Result, err error) Status {
	var timeoutErr *process.TimeoutError
	switch {
	case errors.As(err, &timeoutErr):
		return StatusTimeout
	case err != nil:
		return StatusError
	case result.ExitCode == 0:
		return StatusPass
	case result.ExitCode == constants.UnsupportedExitCode:
		return StatusUnsupported
	default:
		return StatusFail
	}
}

type resultData struct {
	Command  []string
	Stdout   string
	Stderr   string
	ExitCode int
	KeptDir  string
}

// Make renders the command, exit code and output streams of a run
func Make(result *executor.Result) string {
	return execute("result", resultData{
		Command:  result.Command,
		Stdout:   result.Stdout,
		Stderr:   result.Stderr,
		ExitCode: result.ExitCode,
		KeptDir:  result.KeptDir,
	})
}

// Timeout renders a run that outlived its deadline, with whatever output it
// produced before it was stopped
func Timeout(err *process.TimeoutError) string {
	return execute("timeout", struct {
		Message string
		Result  resultData
	}{
		Message: err.Error(),
		Result: resultData{
			Command:  err.Result.Command,
			Stdout:   err.Result.Stdout,
			Stderr:   err.Result.Stderr,
			ExitCode: err.Result.ExitCode,
		},
	})
}

// Summary renders a one line summary of a run
func Summary(binary string, result *executor.Result, err error, took time.Duration) string {
	status := StatusOf(result, err)

	var detail string
	switch status {
	case StatusError:
		detail = err.Error()
	case StatusTimeout:
		detail = took.Round(time.Millisecond).String()
	default:
		detail = fmt.Sprintf("exit %d, %s", result.ExitCode, took.Round(time.Millisecond))
		if result.KeptDir != "" {
			detail += ", kept " + result.KeptDir
		}
	}

	return execute("summary", struct {
		Status Status
		Binary string
		Detail string
	}{status, binary, detail})
}

func execute(name string, data any) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		// The templates are embedded; a failure here is a programming error.
		panic(fmt.Sprintf("failed to execute template %s: %v", name, err))
	}
	return buf.String()
}
