package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

var (
	getRegex     = "^get\\s+(\\S+)(?:\\s+(\\S+))?$"
	putRegex     = "^put\\s+([\\S\\s]+)$"
	timeoutRegex = "^timeout\\s+(\\d+)$"
	blksizeRegex = "^blksize\\s+(\\d+)$"
	connectRegex = "^connect\\s+(\\S+)(?:\\s+(\\d+))?$"
	traceRegex   = "^trace$"
	statusRegex  = "^status$"
	quitRegex    = "^quit$"
	helpRegex    = "^help$"
)

const defaultPort = 69

var errPutNotSupported = errors.New("put is not supported, this client only downloads")

type Evaluator struct {
	l             *zap.SugaredLogger
	client        Connector
	out           io.Writer
	regexPatterns map[string]*regexp.Regexp
	line          string
}

func NewEvaluator(l *zap.SugaredLogger, client Connector, out io.Writer) *Evaluator {
	e := &Evaluator{
		l:      l,
		client: client,
		out:    out,
	}

	e.regexPatterns = make(map[string]*regexp.Regexp)

	e.regexPatterns["get"] = regexp.MustCompile(getRegex)
	e.regexPatterns["put"] = regexp.MustCompile(putRegex)
	e.regexPatterns["timeout"] = regexp.MustCompile(timeoutRegex)
	e.regexPatterns["blksize"] = regexp.MustCompile(blksizeRegex)
	e.regexPatterns["connect"] = regexp.MustCompile(connectRegex)
	e.regexPatterns["trace"] = regexp.MustCompile(traceRegex)
	e.regexPatterns["status"] = regexp.MustCompile(statusRegex)
	e.regexPatterns["quit"] = regexp.MustCompile(quitRegex)
	e.regexPatterns["help"] = regexp.MustCompile(helpRegex)

	return e
}

func (e *Evaluator) evaluate(ctx context.Context) (bool, error) {
	e.line = strings.TrimSpace(e.line)

	if e.line == "" {
		return false, nil
	}

	if matches := e.regexPatterns["get"].FindStringSubmatch(e.line); len(matches) == 3 {
		stats, err := e.client.Get(ctx, matches[1], matches[2])

		if trace := e.client.Trace(); trace != "" {
			fmt.Fprint(e.out, trace)
		}

		if err != nil {
			return false, err
		}

		fmt.Fprintf(e.out, "received %d bytes in %s (%.2f kbps, %d duplicates)\n",
			stats.Bytes, stats.Duration, stats.Kbps(), stats.Duplicates)

		return false, nil
	}

	if matches := e.regexPatterns["put"].FindStringSubmatch(e.line); len(matches) == 2 {
		return false, errPutNotSupported
	}

	if matches := e.regexPatterns["timeout"].FindStringSubmatch(e.line); len(matches) == 2 {
		n, err := strconv.ParseUint(matches[1], 10, 32)
		if err != nil {
			return false, fmt.Errorf("timeout value can not be parsed: %w", err)
		}

		e.client.SetTimeout(uint(n))

		return false, nil
	}

	if matches := e.regexPatterns["blksize"].FindStringSubmatch(e.line); len(matches) == 2 {
		n, err := strconv.Atoi(matches[1])
		if err != nil {
			return false, fmt.Errorf("blksize value can not be parsed: %w", err)
		}

		return false, e.client.SetBlockSize(n)
	}

	if matches := e.regexPatterns["connect"].FindStringSubmatch(e.line); len(matches) == 3 {
		port := defaultPort

		if matches[2] != "" {
			n, err := strconv.Atoi(matches[2])
			if err != nil {
				return false, fmt.Errorf("port can not be parsed: %w", err)
			}

			port = n
		}

		return false, e.client.Connect(matches[1], port)
	}

	if matches := e.regexPatterns["trace"].FindStringSubmatch(e.line); len(matches) == 1 {
		if e.client.SetTrace() {
			fmt.Fprintln(e.out, "packet tracing on")
		} else {
			fmt.Fprintln(e.out, "packet tracing off")
		}

		return false, nil
	}

	if matches := e.regexPatterns["status"].FindStringSubmatch(e.line); len(matches) == 1 {
		fmt.Fprintln(e.out, e.client.Status())

		return false, nil
	}

	if matches := e.regexPatterns["help"].FindStringSubmatch(e.line); len(matches) == 1 {
		fmt.Fprintln(e.out, `Commands:
	connect <host> [port]
	get <remote file> [local file]
	blksize <integer>
	timeout <seconds>
	trace
	status
	quit`)

		return false, nil
	}

	if matches := e.regexPatterns["quit"].FindStringSubmatch(e.line); len(matches) == 1 {
		return true, nil
	}

	return false, fmt.Errorf("unknown command arguments: %s", e.line)
}
