package main

import (
	"github.com/protocol-laboratory/sideline-spout-go/constant"
	"github.com/protocol-laboratory/sideline-spout-go/consumer"
	"github.com/protocol-laboratory/sideline-spout-go/coordinator"
	"github.com/protocol-laboratory/sideline-spout-go/filter"
	"github.com/protocol-laboratory/sideline-spout-go/log"
	"github.com/protocol-laboratory/sideline-spout-go/model"
	"github.com/protocol-laboratory/sideline-spout-go/persistence"
	"github.com/protocol-laboratory/sideline-spout-go/spout"
	"github.com/sirupsen/logrus"
	"os"
	"os/signal"
	"syscall"
)

const sidelineKey = "sideline"

// sideline requests of this driver drop messages keyed "sideline"
var sidelineStep = filter.StepFunc(func(msg *model.Message) bool {
	return msg.Key == sidelineKey
})

func main() {
	logger := log.NewLoggerWithLogrus(logrus.StandardLogger(), &logrus.TextFormatter{FullTimestamp: true})

	persistenceConfig := &persistence.Config{}
	persistenceConfig.Type = persistence.TypePebble
	persistenceConfig.Encoding = persistence.EncodingBinary
	persistenceConfig.PebbleConfig.Dir = "sideline_it_state"
	manager, err := persistence.New(persistenceConfig)
	if err != nil {
		panic(err)
	}
	err = manager.Open()
	if err != nil {
		panic(err)
	}
	defer manager.Close()

	newConsumer := func() (consumer.Consumer, error) {
		config := consumer.PulsarConfig{}
		config.Host = "localhost"
		config.HttpPort = 8080
		config.TcpPort = 6650
		config.Tenant = "public"
		config.Namespace = "default"
		config.Topic = "sideline_it"
		return consumer.NewPulsarConsumer(config), nil
	}
	mainConsumer, _ := newConsumer()
	mainSpout, err := spout.NewVirtualSpout(spout.Config{
		Id:                 model.VirtualSpoutIdentifier(constant.MainSpoutIdPrefix),
		StartingState:      model.EmptyState(),
		EndingState:        model.UnboundedState,
		Consumer:           mainConsumer,
		PersistenceManager: manager,
		Logger:             logger,
	})
	if err != nil {
		panic(err)
	}

	c := coordinator.NewCoordinator(coordinator.Config{
		Logger: logger,
		OnSpoutClosed: func(s spout.DelegateSpout, completed bool) {
			logger.VirtualSpoutID(s.VirtualSpoutId().String()).Infof("spout finished, completed: %t", completed)
		},
	})
	controller := coordinator.NewSidelineController(c, mainSpout, manager,
		coordinator.VirtualSpoutFactory(newConsumer, manager, logger), logger)
	err = controller.Resume(func(id model.SidelineIdentifier) (filter.Step, bool) {
		return sidelineStep, true
	})
	if err != nil {
		panic(err)
	}
	err = c.AddVirtualSpout(mainSpout)
	if err != nil {
		panic(err)
	}
	c.Start()

	go func() {
		for message := range c.Messages() {
			logger.VirtualSpoutID(message.Id.SourceId).Debugf("received %s key %s", message.Id, message.Key)
			c.Ack(message.Id)
		}
	}()

	// SIGUSR1 starts a sideline request, SIGUSR2 stops the latest one
	var current model.SidelineIdentifier
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGUSR1, syscall.SIGUSR2)
	for sig := range interrupt {
		switch sig {
		case syscall.SIGUSR1:
			current = model.NewSidelineIdentifier()
			if err := controller.StartSidelining(current, sidelineStep); err != nil {
				logger.Errorf("start sideline failed: %v", err)
			}
		case syscall.SIGUSR2:
			if current == "" {
				continue
			}
			if err := controller.StopSidelining(current, sidelineStep); err != nil {
				logger.Errorf("stop sideline failed: %v", err)
			}
			current = ""
		default:
			c.Close()
			return
		}
	}
}
