package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/Wa4h1h/go-tftp-client/pkg/client"
	"github.com/Wa4h1h/go-tftp-client/pkg/utils"
)

var (
	logLevel    = utils.GetEnv[string]("TFTP_LOG_LEVEL", "info", false)
	timeout     = utils.GetEnv[uint]("TFTP_TIMEOUT", "5", false)
	blksize     = utils.GetEnv[int]("TFTP_BLKSIZE", "512", false)
	defaultPort = utils.GetEnv[int]("TFTP_PORT", "69", false)
	tftpBaseDir = utils.GetEnv[string]("TFTP_BASE_DIR", "", false)
)

func main() {
	l := utils.NewLogger(logLevel).Sugar()

	defer func() {
		_ = l.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	baseDir, err := utils.DownloadDir(tftpBaseDir)
	if err != nil {
		l.Fatal(err)
	}

	c, err := client.NewConnection(l, baseDir, time.Duration(timeout)*time.Second, blksize)
	if err != nil {
		l.Fatal(err)
	}

	// client <host[:port]> <remote> [local]
	if len(os.Args) >= 3 {
		if err := oneShot(ctx, c, os.Args[1:]); err != nil {
			l.Error(err)
			stop()
			os.Exit(1)
		}

		return
	}

	if err := client.NewCli(l, c, os.Stdin, os.Stdout).Read(ctx); err != nil {
		l.Error(err)
	}
}

func oneShot(ctx context.Context, c client.Connector, args []string) error {
	host, port := args[0], defaultPort

	if h, p, err := net.SplitHostPort(args[0]); err == nil {
		n, err := strconv.Atoi(p)
		if err != nil {
			return fmt.Errorf("port can not be parsed: %w", err)
		}

		host, port = h, n
	}

	if err := c.Connect(host, port); err != nil {
		return err
	}

	var local string
	if len(args) >= 3 {
		local = args[2]
	}

	stats, err := c.Get(ctx, args[1], local)
	if err != nil {
		return err
	}

	fmt.Printf("received %d bytes in %s (%.2f kbps, %d duplicates)\n",
		stats.Bytes, stats.Duration, stats.Kbps(), stats.Duplicates)

	return nil
}
