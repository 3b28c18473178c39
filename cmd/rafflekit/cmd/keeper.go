// Copyright 2020 The Swarm Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rafflekit/rafflekit/pkg/debugapi"
	"github.com/rafflekit/rafflekit/pkg/keeper"
	"github.com/rafflekit/rafflekit/pkg/metrics"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	optionNameDebugAPIAddr       = "debug-api-addr"
	optionNameCORSAllowedOrigins = "cors-allowed-origins"
	optionNameKeeperInterval     = "keeper-interval"
	optionNameFulfill            = "fulfill"
)

const shutdownTimeout = 15 * time.Second

func (c *command) initKeeperCmd() {
	cmd := &cobra.Command{
		Use:   "keeper",
		Short: "Perform raffle upkeep whenever the raffle is eligible",
		Long: `Keeper polls the raffle for upkeep and performs it from the deployer
account. On development chains it also fulfills the randomness requests through
the coordinator mock. The debug API serves metrics, health and the raffle
state until the process is interrupted.`,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(args) > 0 {
				return cmd.Help()
			}
			logger, err := c.newLogger(cmd)
			if err != nil {
				return err
			}
			s, err := c.connect(cmd, logger)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := s.Close(); cerr != nil && err == nil {
					err = cerr
				}
			}()

			r, err := s.raffle(s.chain.Deployer().Address)
			if err != nil {
				return err
			}
			o := keeper.Options{
				Logger:       logger,
				Raffle:       r,
				PollInterval: c.config.GetDuration(optionNameKeeperInterval),
			}
			if c.config.GetBool(optionNameFulfill) {
				if o.Oracle, err = s.oracle(); err != nil {
					return err
				}
			}
			reader, err := s.orchestrator(0)
			if err != nil {
				return err
			}

			agent := keeper.New(o)
			defer func() {
				if cerr := agent.Close(); cerr != nil {
					logger.Errorf("keeper shutdown: %v", cerr)
				}
			}()

			var debugAPIServer *http.Server
			if addr := c.config.GetString(optionNameDebugAPIAddr); addr != "" {
				debugAPIService := debugapi.New(logger, s.tracer, c.config.GetStringSlice(optionNameCORSAllowedOrigins))
				// register metrics from components
				if l, ok := logger.(metrics.Collector); ok {
					debugAPIService.MustRegisterMetrics(l.Metrics()...)
				}
				debugAPIService.MustRegisterMetrics(agent.Metrics()...)
				debugAPIService.MustRegisterMetrics(reader.Metrics()...)
				debugAPIService.Configure(s.chain.ChainID, reader, agent)

				debugAPIListener, err := net.Listen("tcp", addr)
				if err != nil {
					return fmt.Errorf("debug api listener: %w", err)
				}

				errorLog := logger.WriterLevel(logrus.ErrorLevel)
				defer errorLog.Close()
				debugAPIServer = &http.Server{
					Handler:           debugAPIService,
					ReadHeaderTimeout: 3 * time.Second,
					ErrorLog:          log.New(errorLog, "", 0),
				}

				go func() {
					logger.Infof("debug api address: %s", debugAPIListener.Addr())

					if err := debugAPIServer.Serve(debugAPIListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Errorf("debug api server: %v", err)
					}
				}()
			}

			// Wait for termination or interrupt signals.
			// We want to clean up things at the end.
			interruptChannel := make(chan os.Signal, 1)
			signal.Notify(interruptChannel, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(interruptChannel)

			select {
			case sig := <-interruptChannel:
				logger.Infof("received signal: %v", sig)
			case <-s.ctx.Done():
			}

			// Shutdown
			done := make(chan struct{})
			go func() {
				defer close(done)

				ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if debugAPIServer != nil {
					if err := debugAPIServer.Shutdown(ctx); err != nil {
						logger.Errorf("debug api server shutdown: %v", err)
					}
				}
			}()

			// If shutdown function is blocking too long,
			// allow process termination by receiving another signal.
			select {
			case sig := <-interruptChannel:
				logger.Infof("received signal: %v", sig)
			case <-done:
			}
			return nil
		},
		PreRunE: c.bindFlags,
	}

	c.setAllFlags(cmd)
	cmd.Flags().String(optionNameDebugAPIAddr, ":1635", "debug HTTP API listen address, disabled when empty")
	cmd.Flags().StringSlice(optionNameCORSAllowedOrigins, []string{}, "origins with CORS headers enabled")
	cmd.Flags().Duration(optionNameKeeperInterval, keeper.DefaultPollInterval, "upkeep check interval")
	cmd.Flags().Bool(optionNameFulfill, true, "fulfill randomness requests through the coordinator mock on development chains")

	c.root.AddCommand(cmd)
}
