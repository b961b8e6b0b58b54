// Command e2e_test is a live smoke test against a running Ollama instance:
// it stores a few documents, runs a query and a streaming query, and drives
// one scheduler batch. It is not part of the unit test suite.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/docmindhq/docmind"
	"github.com/docmindhq/docmind/store"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo})))

	tmpDir, _ := os.MkdirTemp("", "docmind-e2e-*")
	defer os.RemoveAll(tmpDir)

	cfg := docmind.DefaultConfig()
	cfg.DBPath = tmpDir + "/test.db"
	if v := os.Getenv("DOCMIND_CHAT_MODEL"); v != "" {
		cfg.Chat.Model = v
	}
	if v := os.Getenv("DOCMIND_EMBED_MODEL"); v != "" {
		cfg.Embedding.Model = v
	}
	cfg.ScanIntervalSec = 5

	svc, err := docmind.New(cfg)
	if err != nil {
		fatal("creating service: %v", err)
	}
	defer svc.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	docs := []struct{ number, subject, sender, receiver, date, note string }{
		{"DOC-2024-001", "quarterly budget approval", "finance team", "management office",
			"2024-03-01", "Q2 budget of 45,000 approved for the bridge project with acme corp."},
		{"DOC-2024-002", "server maintenance notice", "it office", "all staff",
			"2024-03-05", "maintenance window saturday 02:00-06:00."},
		{"DOC-2024-003", "bridge project site inspection", "acme corp", "engineering office",
			"2024-03-12", "inspection by jane park scheduled for march 20."},
	}
	for _, d := range docs {
		id, err := svc.AddDocument(ctx, store.Document{
			Number: d.number, Subject: d.subject, Sender: d.sender,
			Receiver: d.receiver, DocDate: d.date, Note: d.note,
		})
		if err != nil {
			fatal("adding document %s: %v", d.number, err)
		}
		fmt.Printf("stored document %s (id %d)\n", d.number, id)
	}

	answer, err := svc.Query(ctx, "what was approved for the bridge project?")
	if err != nil {
		fatal("query: %v", err)
	}
	fmt.Printf("\nanswer (%s, %dms, %d sources):\n%s\n",
		answer.Model, answer.LatencyMs, answer.RetrievalCount, answer.Text)

	fmt.Println("\nstreaming:")
	err = svc.StreamQuery(ctx, "who inspects the bridge project site?", func(ev docmind.Event) error {
		switch ev.Type {
		case docmind.EventSources:
			fmt.Printf("[%d sources]\n", len(ev.Sources))
		case docmind.EventToken:
			fmt.Print(ev.Token)
		case docmind.EventDone:
			fmt.Printf("\n[done %s %dms]\n", ev.Model, ev.LatencyMs)
		}
		return nil
	})
	if err != nil {
		fatal("stream query: %v", err)
	}

	if err := svc.StartScheduler(); err != nil {
		fatal("starting scheduler: %v", err)
	}
	fmt.Println("\nscheduler running, waiting for an extraction batch...")
	time.Sleep(30 * time.Second)
	status := svc.SchedulerStatus()
	fmt.Printf("scheduler status: %+v\n", status)
	if err := svc.StopScheduler(); err != nil {
		fatal("stopping scheduler: %v", err)
	}

	stats, err := svc.Stats(ctx)
	if err != nil {
		fatal("stats: %v", err)
	}
	fmt.Printf("final stats: %+v\n", *stats)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
