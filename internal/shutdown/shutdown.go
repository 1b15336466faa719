package shutdown

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

func CreateGracefulShutdownChannel() chan os.Signal {
	gracefulShutdown := make(chan os.Signal, 1)
	signal.Notify(gracefulShutdown, syscall.SIGTERM, syscall.SIGINT)

	return gracefulShutdown
}

// ListenForShutdown blocks until a termination signal arrives, cancels the
// worker context and then waits for timeToWait before closing done.
func ListenForShutdown(
	signalChan chan os.Signal,
	done chan bool,
	cancel context.CancelFunc,
	timeToWait time.Duration,
	l *zap.Logger,
) {
	sig := <-signalChan
	switch sig {
	case syscall.SIGTERM, syscall.SIGINT:
		l.Sugar().Infow("Caught signal, stopping workers", zap.String("signal", sig.String()))

		cancel()

		l.Sugar().Infow("Waiting before exit", zap.Duration("timeToWait", timeToWait))
		time.Sleep(timeToWait)

		l.Sugar().Infow("Exiting")
		close(done)
	}
}
