package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daycal/calendar/internal/logger"
	"github.com/daycal/calendar/internal/rabbit"
	"github.com/daycal/calendar/internal/storage"
	"github.com/daycal/calendar/internal/storagebuilder"
	log "github.com/sirupsen/logrus"
)

var configFile string

const checkTimeout = time.Minute

func newMessage(share storage.CalendarShare) rabbit.Message {
	return rabbit.Message{
		ShareID:          share.ID,
		OwnerID:          share.OwnerID,
		SharedWithUserID: share.SharedWithUserID,
		ExpiredAt:        *share.ExpiresAt,
	}
}

func init() {
	flag.StringVar(&configFile, "config", "./configs/scheduler_config.yaml", "Path to configuration file")
	log.SetFormatter(&log.TextFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(log.WarnLevel)
}

func main() {
	flag.Parse()

	config, err := NewConfig(configFile)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	err = logger.PrepareLogger(config.Logger)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}

	r := rabbit.New(config.Rabbit)
	if err := r.Connect(); err != nil {
		log.Errorf("failed to connect to rabbit: %v", err)
		return
	}
	defer r.Close()

	stor, err := storagebuilder.New(config.Storage)
	if err != nil {
		log.Errorf("failed to start %v", err)
		return
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second*3)
		defer cancel()
		stor.Close(ctx)
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer cancel()

	startTime := time.Now().Add(-checkTimeout)
	endTime := time.Now()
	checkTicker := time.NewTicker(checkTimeout)
	for {
		log.Debugf("check expired shares: %s - %s", startTime, endTime)
		shares, err := stor.GetSharesExpiredBetween(ctx, startTime, endTime)
		if err != nil {
			log.Errorf("failed to get expired shares: %s", err)
		}
		for _, share := range shares {
			log.Debugf("share %d expired, notifying", share.ID)
			data, _ := json.Marshal(newMessage(share))
			if err := r.Publish(data); err != nil {
				log.Errorf("failed to publish revocation notice: %s", err)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-checkTicker.C:
			startTime = endTime
			endTime = time.Now()
		}
	}
}
