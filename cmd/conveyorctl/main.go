// conveyorctl is a thin operator CLI for the pipeline: it sends test
// messages, triggers training runs, and inspects or requeues dead letters.
// Each command issues a single transport call and exits non-zero on failure.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/conveyor-etl/conveyor/internal/config"
	"github.com/conveyor-etl/conveyor/internal/pipeline"
	"github.com/conveyor-etl/conveyor/internal/queue"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: conveyorctl <command> [args]

commands:
  send <queue> <payload>        send a message to a stage queue
  trigger-training [-source s]  enqueue a training trigger on the train queue
  dead-letters <queue> [-limit n]  list dead-lettered messages
  requeue <queue> <id>          move a dead letter back onto its queue
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	_ = godotenv.Load(".env") // ignore error if .env missing

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	client, err := queue.NewClient(cfg.Valkey)
	if err != nil {
		log.Fatalf("connect valkey: %v", err)
	}
	defer client.Close()

	ctx := context.Background()

	switch os.Args[1] {
	case "send":
		if len(os.Args) != 4 {
			usage()
		}
		id, err := queue.NewProducer(client).Send(ctx, os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("send: %v", err)
		}
		fmt.Printf("sent %s to %s\n", id, os.Args[2])

	case "trigger-training":
		fs := flag.NewFlagSet("trigger-training", flag.ExitOnError)
		srcTag := fs.String("source", "conveyorctl", "source tag recorded on the message")
		fs.Parse(os.Args[2:])

		msg := pipeline.Message{
			TriggerTimestamp: time.Now().UTC(),
			Source:           *srcTag,
		}
		id, err := queue.NewProducer(client).Send(ctx, cfg.Queues.Train, msg.Encode())
		if err != nil {
			log.Fatalf("trigger training: %v", err)
		}
		fmt.Printf("sent %s to %s\n", id, cfg.Queues.Train)

	case "dead-letters":
		if len(os.Args) < 3 {
			usage()
		}
		fs := flag.NewFlagSet("dead-letters", flag.ExitOnError)
		limit := fs.Int64("limit", 20, "maximum entries to list")
		fs.Parse(os.Args[3:])

		letters, err := queue.DeadLetters(ctx, client, os.Args[2], *limit)
		if err != nil {
			log.Fatalf("dead-letters: %v", err)
		}
		if len(letters) == 0 {
			fmt.Println("no dead letters")
			return
		}
		for _, dl := range letters {
			fmt.Printf("%s  attempts=%d  payload=%q  error=%s\n", dl.ID, dl.Attempts, dl.Payload, dl.Error)
		}

	case "requeue":
		if len(os.Args) != 4 {
			usage()
		}
		newID, err := queue.Requeue(ctx, client, os.Args[2], os.Args[3])
		if err != nil {
			log.Fatalf("requeue: %v", err)
		}
		fmt.Printf("requeued as %s on %s\n", newID, os.Args[2])

	default:
		usage()
	}
}
