package main

import (
	"fmt"
	"os"
	"time"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"travels/pkg"
	"travels/pubsub"
)

const consumerGroup = "poison-queue-cli"

func newQueue(c *cli.Context) (*Queue, func(), error) {
	redisClient := pkg.NewRedisClient(c.String("redis-addr"))
	watermillLogger := log.NewWatermill(logrus.NewEntry(logrus.StandardLogger()))

	sub, err := pubsub.NewRedisSubscriber(redisClient, consumerGroup, watermillLogger)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, err
	}
	pub, err := pubsub.NewRedisPublisher(redisClient, watermillLogger)
	if err != nil {
		_ = redisClient.Close()
		return nil, nil, err
	}

	closeFn := func() {
		_ = sub.Close()
		_ = pub.Close()
		_ = redisClient.Close()
	}

	return NewQueue(sub, pub, c.Duration("idle")), closeFn, nil
}

func main() {
	log.Init(logrus.WarnLevel)

	app := &cli.App{
		Name:  "poison-queue-cli",
		Usage: "Manage events that kept failing in the travels service",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "redis-addr",
				EnvVars:  []string{"REDIS_ADDR"},
				Required: true,
			},
			&cli.DurationFlag{
				Name:  "idle",
				Usage: "stop waiting for messages after this long",
				Value: 2 * time.Second,
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "preview",
				Usage: "preview messages",
				Action: func(c *cli.Context) error {
					q, closeFn, err := newQueue(c)
					if err != nil {
						return err
					}
					defer closeFn()

					messages, err := q.Preview(c.Context)
					if err != nil {
						return err
					}

					for _, m := range messages {
						fmt.Printf("%v\t%v\t%v\t%v\n", m.ID, m.Topic, m.Handler, m.Reason)
					}

					return nil
				},
			},
			{
				Name:      "remove",
				ArgsUsage: "<message_id>",
				Usage:     "remove message",
				Action: func(c *cli.Context) error {
					q, closeFn, err := newQueue(c)
					if err != nil {
						return err
					}
					defer closeFn()

					return q.Remove(c.Context, c.Args().First())
				},
			},
			{
				Name:      "requeue",
				ArgsUsage: "<message_id>",
				Usage:     "send message back to the topic it failed on",
				Action: func(c *cli.Context) error {
					q, closeFn, err := newQueue(c)
					if err != nil {
						return err
					}
					defer closeFn()

					return q.Requeue(c.Context, c.Args().First())
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}
