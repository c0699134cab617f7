package main

import (
	"flag"
	"log"

	"ref-mill/config"
	"ref-mill/queue"
	"ref-mill/services"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Operational helper for the job queue: inspect dead letters, put them
// back in flight, and purge old terminal jobs without going through the API.
func main() {
	list := flag.Bool("list", false, "list dead-lettered messages and exit")
	all := flag.Bool("all", false, "redrive every dead-lettered message")
	id := flag.Uint("id", 0, "redrive a single message by id")
	purge := flag.Bool("purge", false, "delete terminal jobs older than the retention window")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Konfiguration konnte nicht geladen werden: %v", err)
	}

	zlog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Logger-Initialisierung fehlgeschlagen: %v", err)
	}
	defer zlog.Sync()

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		log.Fatalf("Datenbankverbindung fehlgeschlagen: %v", err)
	}

	q := queue.New(db, zlog, cfg.VisibilityTimeout, cfg.MaxReceiveCount)

	if *purge {
		jobs := services.NewJobService(db, zlog)
		n, err := jobs.PurgeTerminal(cfg.JobRetention)
		if err != nil {
			log.Fatalf("Bereinigung fehlgeschlagen: %v", err)
		}
		log.Printf("%d abgeschlossene Jobs entfernt", n)
		return
	}

	dead, err := q.DeadLetters()
	if err != nil {
		log.Fatalf("Dead-Letter-Abfrage fehlgeschlagen: %v", err)
	}

	if *list || (!*all && *id == 0) {
		if len(dead) == 0 {
			log.Println("Keine Dead-Letter-Nachrichten vorhanden.")
			return
		}
		for _, m := range dead {
			log.Printf("id=%d job=%s kind=%s receives=%d enqueued=%s",
				m.ID, m.JobID, m.ContentKind, m.ReceiveCount, m.EnqueuedAt.Format("2006-01-02T15:04:05Z"))
		}
		return
	}

	if *id != 0 {
		if err := q.Redrive(*id); err != nil {
			log.Fatalf("Redrive von Nachricht %d fehlgeschlagen: %v", *id, err)
		}
		log.Printf("Nachricht %d wieder eingereiht", *id)
		return
	}

	redriven := 0
	for _, m := range dead {
		if err := q.Redrive(m.ID); err != nil {
			log.Printf("Redrive von Nachricht %d fehlgeschlagen: %v", m.ID, err)
			continue
		}
		redriven++
	}
	log.Printf("%d von %d Nachrichten wieder eingereiht", redriven, len(dead))
}
