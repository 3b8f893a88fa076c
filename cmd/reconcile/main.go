package main

import (
	"context"
	"fmt"
	"os"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"tours/db"
	"tours/entity"
	"tours/pubsub"
	"tours/pubsub/bus"
	"tours/pubsub/outbox"
)

func main() {
	log.Init(logrus.WarnLevel)

	app := &cli.App{
		Name:  "reconcile",
		Usage: "Resolve payments charged by the processor but not settled by the content service",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "postgres-url", EnvVars: []string{"POSTGRES_URL"}},
			&cli.StringFlag{Name: "redis-addr", EnvVars: []string{"REDIS_ADDR"}},
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list payment intents waiting for reconciliation",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "status",
						Value: entity.OpsIntentStatusSettlementFailed,
						Usage: "read model status to list, empty for all",
					},
				},
				Action: func(c *cli.Context) error {
					dbconn, err := openDB(c)
					if err != nil {
						return err
					}
					defer dbconn.Close()

					intents, err := db.NewOpsPaymentIntents(dbconn).FindAll(c.Context, c.String("status"))
					if err != nil {
						return err
					}

					for _, i := range intents {
						fmt.Printf("%v\t%v\t%v\t%v\t%v\n", i.PaymentIntentID, i.Status, i.AmountDisplay, i.TouristEmail, i.FailureReason)
					}

					return nil
				},
			},
			{
				Name:      "resolve",
				ArgsUsage: "<payment_intent_id>",
				Usage:     "mark a failed settlement as resolved",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "resolution",
						Required: true,
						Usage:    "refunded or settled",
					},
					&cli.StringFlag{Name: "note"},
				},
				Action: func(c *cli.Context) error {
					intentID := c.Args().First()
					if intentID == "" {
						return fmt.Errorf("missing payment intent id")
					}

					dbconn, err := openDB(c)
					if err != nil {
						return err
					}
					defer dbconn.Close()

					resolved, err := resolve(c.Context, dbconn, intentID, c.String("resolution"), c.String("note"))
					if err != nil {
						return err
					}

					fmt.Printf("%v\t%v\t%v\n", resolved.PaymentIntentID, resolved.Status, resolved.Resolution)
					return nil
				},
			},
			{
				Name:  "poison",
				Usage: "manage messages that could not be processed",
				Subcommands: []*cli.Command{
					{
						Name:  "preview",
						Usage: "preview messages",
						Action: func(c *cli.Context) error {
							h, closeFn, err := newPoisonQueue(c)
							if err != nil {
								return err
							}
							defer closeFn()

							messages, err := h.Preview(c.Context)
							if err != nil {
								return err
							}

							for _, m := range messages {
								fmt.Printf("%v\t%v\n", m.ID, m.Reason)
							}

							return nil
						},
					},
					{
						Name:      "remove",
						ArgsUsage: "<message_id>",
						Usage:     "remove message",
						Action: func(c *cli.Context) error {
							h, closeFn, err := newPoisonQueue(c)
							if err != nil {
								return err
							}
							defer closeFn()

							return h.Remove(c.Context, c.Args().First())
						},
					},
				},
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logrus.Fatal(err)
	}
}

func openDB(c *cli.Context) (*sqlx.DB, error) {
	url := c.String("postgres-url")
	if url == "" {
		return nil, fmt.Errorf("missing --postgres-url")
	}

	return sqlx.Open("postgres", url)
}

// resolve records the resolution and emits SettlementReconciled_v1 through the outbox
// in the same transaction.
func resolve(ctx context.Context, dbconn *sqlx.DB, intentID, resolution, note string) (entity.OpsPaymentIntent, error) {
	watermillLogger := log.NewWatermill(log.FromContext(ctx))

	return db.NewOpsPaymentIntents(dbconn).Resolve(
		ctx,
		intentID,
		resolution,
		note,
		func(ctx context.Context, tx *sqlx.Tx, rm entity.OpsPaymentIntent) error {
			publisher, err := outbox.NewPublisher(tx.Tx, watermillLogger)
			if err != nil {
				return err
			}

			eventBus, err := bus.NewEventBus(publisher)
			if err != nil {
				return err
			}

			return eventBus.Publish(ctx, entity.SettlementReconciled_v1{
				Header:          entity.NewEventHeaderWithIdempotencyKey(rm.PaymentIntentID),
				PaymentIntentID: rm.PaymentIntentID,
				Resolution:      rm.Resolution,
				Note:            rm.ResolutionNote,
			})
		},
	)
}

func newPoisonQueue(c *cli.Context) (*pubsub.PoisonQueue, func(), error) {
	addr := c.String("redis-addr")
	if addr == "" {
		return nil, nil, fmt.Errorf("missing --redis-addr")
	}

	rdb := redis.NewClient(&redis.Options{Addr: addr})

	return pubsub.NewPoisonQueue(rdb), func() { _ = rdb.Close() }, nil
}
