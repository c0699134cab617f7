package main

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"time"

	"ref-mill/config"
	"ref-mill/models"
	"ref-mill/providers/crossref"
	"ref-mill/providers/grobid"
	"ref-mill/queue"
	"ref-mill/services"
	"ref-mill/storage"
	"ref-mill/worker"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// maxUploadSize bounds accepted PDF uploads.
const maxUploadSize = 50 << 20

func apiKeyAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.APISecretKey == "" {
			c.Next()
			return
		}
		apiKey := c.GetHeader("X-API-KEY")
		if apiKey != cfg.APISecretKey {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized: Invalid API Key"})
			return
		}
		c.Next()
	}
}

func main() {
	logging, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logging.Sync()

	cfg, err := config.Load()
	if err != nil {
		logging.Fatal("Config load error", zap.Error(err))
	}

	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		logging.Fatal("Failed to connect to database", zap.Error(err))
	}
	logging.Info("Successfully connected to database.")

	logging.Info("Running database auto-migration...")
	if err := db.AutoMigrate(&models.Document{}, &models.Job{}, &models.QueueMessage{}); err != nil {
		logging.Fatal("Auto-migration failed", zap.Error(err))
	}

	// Setup storage and providers
	store, err := storage.NewS3Store(cfg)
	if err != nil {
		logging.Fatal("S3 client creation failed", zap.Error(err))
	}

	var grobidClient *grobid.Client
	if cfg.GrobidEnabled {
		grobidClient = grobid.NewClient(cfg.GrobidURL, logging, grobid.WithTimeout(cfg.GrobidTimeout))
		logging.Info("Structured extraction enabled", zap.String("url", cfg.GrobidURL))
	} else {
		logging.Warn("Structured extraction disabled, pattern parser only")
	}

	crossrefClient := crossref.NewClient(logging,
		crossref.WithBaseURL(cfg.CrossRefBaseURL),
		crossref.WithMailto(cfg.CrossRefMailto),
		crossref.WithRate(cfg.CrossRefRate),
		crossref.WithRetries(cfg.CrossRefRetries))

	// Setup services
	jobService := services.NewJobService(db, logging)
	docService := services.NewDocumentService(db, logging)
	jobQueue := queue.New(db, logging, cfg.VisibilityTimeout, cfg.MaxReceiveCount)

	pool := &worker.Pool{
		Config:   cfg,
		Queue:    jobQueue,
		Jobs:     jobService,
		Docs:     docService,
		Store:    store,
		Enrich:   crossrefClient,
		Selector: services.NewSelector(cfg, logging),
		Parser:   services.NewReferenceParser(logging),
		Splitter: services.NewReferenceSplitter(logging),
		Logger:   logging,
	}
	if grobidClient != nil {
		pool.Grobid = grobidClient
	}

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()
	go pool.Run(workerCtx)
	logging.Info("Worker pool started", zap.Int("workers", cfg.WorkerCount))

	// Setup Router
	router := gin.Default()
	router.Use(gin.Recovery())
	router.Use(apiKeyAuthMiddleware(cfg))
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.MaxMultipartMemory = maxUploadSize

	setupHealthRoutes(router, db, grobidClient)
	setupJobRoutes(router, jobService, docService, jobQueue, store, logging)
	setupDocumentRoutes(router, docService, logging)
	setupQueueAdminRoutes(router, jobQueue, logging)

	// Setup Cron
	cronScheduler := cron.New()
	cronScheduler.AddFunc(cfg.MaintenanceCron, func() {
		logging.Info("Running scheduled maintenance...")
		if _, err := jobService.PurgeTerminal(cfg.JobRetention); err != nil {
			logging.Error("Job purge failed", zap.Error(err))
		}
	})
	cronScheduler.Start()

	logging.Info("Starting server", zap.String("port", cfg.HTTPPort))
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logging.Fatal("Failed to run server", zap.Error(err))
	}
}

func setupHealthRoutes(router *gin.Engine, db *gorm.DB, grobidClient *grobid.Client) {
	router.GET("/health", func(c *gin.Context) {
		status := gin.H{"status": "healthy"}

		sqlDB, err := db.DB()
		if err != nil || sqlDB.Ping() != nil {
			status["status"] = "degraded"
			status["database"] = "down"
		} else {
			status["database"] = "up"
		}

		if grobidClient != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
			defer cancel()
			if grobidClient.IsAlive(ctx) {
				status["grobid"] = "up"
			} else {
				status["status"] = "degraded"
				status["grobid"] = "down"
			}
		} else {
			status["grobid"] = "disabled"
		}

		code := http.StatusOK
		if status["status"] == "degraded" {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, status)
	})
}

// statusMessages are the human-readable strings surfaced through the
// polling contract.
var statusMessages = map[string]string{
	models.JobStatusPending:    "queued for processing",
	models.JobStatusProcessing: "processing document",
	models.JobStatusAnalyzing:  "extracting bibliographic data",
	models.JobStatusCompleted:  "processing complete",
	models.JobStatusFailed:     "processing failed",
}

func setupJobRoutes(router *gin.Engine, jobs *services.JobService, docs *services.DocumentService, q *queue.Queue, store storage.ContentStore, log *zap.Logger) {
	rg := router.Group("/upload")

	// submitUpload reads a multipart PDF, stores it and enqueues a job.
	submitUpload := func(c *gin.Context, contentKind string) {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "'file' form field is required"})
			return
		}
		if fileHeader.Size > maxUploadSize {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}

		file, err := fileHeader.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
			return
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "could not read upload"})
			return
		}

		key := "uploads/" + uuid.NewString() + ".pdf"
		if _, err := store.Upload(c.Request.Context(), key, data); err != nil {
			log.Error("Upload to storage failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
			return
		}

		job, err := jobs.Create(key, fileHeader.Filename, contentKind, "")
		if err != nil {
			log.Error("Job creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if err := q.Enqueue(job.JobID, key, contentKind); err != nil {
			log.Error("Enqueue failed", zap.String("job_id", job.JobID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "queue error"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"job_id": job.JobID, "status": job.Status})
	}

	// POST - Submit a scholarly PDF for header extraction
	rg.POST("/pdf", func(c *gin.Context) {
		submitUpload(c, models.ContentKindPDF)
	})

	// POST - Submit a PDF whose reference list should be extracted entry by entry
	rg.POST("/references-pdf", func(c *gin.Context) {
		submitUpload(c, models.ContentKindReferencesPDF)
	})

	// POST - Submit one citation as free text
	rg.POST("/references-text", func(c *gin.Context) {
		var req struct {
			Text string `json:"text" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body. 'text' field is required."})
			return
		}

		key := "references/" + uuid.NewString() + ".txt"
		if _, err := store.Upload(c.Request.Context(), key, []byte(req.Text)); err != nil {
			log.Error("Upload to storage failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "storage error"})
			return
		}

		job, err := jobs.Create(key, "", models.ContentKindReferenceText, "")
		if err != nil {
			log.Error("Job creation failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		if err := q.Enqueue(job.JobID, key, models.ContentKindReferenceText); err != nil {
			log.Error("Enqueue failed", zap.String("job_id", job.JobID), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "queue error"})
			return
		}

		c.JSON(http.StatusAccepted, gin.H{"job_id": job.JobID, "status": job.Status})
	})

	// GET - Poll job status and result
	router.GET("/job-status/:job_id", func(c *gin.Context) {
		job, err := jobs.Get(c.Param("job_id"))
		if errors.Is(err, services.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		if err != nil {
			log.Error("Job lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}

		resp := gin.H{
			"job_id":       job.JobID,
			"status":       job.Status,
			"progress":     job.Progress,
			"message":      statusMessages[job.Status],
			"content_kind": job.ContentKind,
			"attempts":     job.Attempts,
			"created_at":   job.CreatedAt,
		}
		if job.Error != "" {
			resp["error"] = job.Error
		}
		if job.Status == models.JobStatusCompleted && job.ResultSeq != nil {
			if doc, err := docs.GetBySeq(*job.ResultSeq); err == nil {
				resp["document"] = doc
			}
		}
		if job.ContentKind == models.ContentKindReferencesPDF {
			if subs, err := jobs.SubJobs(job.JobID); err == nil && len(subs) > 0 {
				resp["sub_jobs"] = subs
			}
		}
		c.JSON(http.StatusOK, resp)
	})
}

func setupDocumentRoutes(router *gin.Engine, docs *services.DocumentService, log *zap.Logger) {
	rg := router.Group("/documents")

	rg.GET("/", func(c *gin.Context) {
		offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))

		items, total, err := docs.List(offset, limit)
		if err != nil {
			log.Error("Database query for documents failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"total": total, "documents": items})
	})

	rg.GET("/:seq", func(c *gin.Context) {
		seq, err := strconv.Atoi(c.Param("seq"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid sequence number"})
			return
		}
		doc, err := docs.GetBySeq(seq)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
				return
			}
			log.Error("Document lookup failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, doc)
	})
}

func setupQueueAdminRoutes(router *gin.Engine, q *queue.Queue, log *zap.Logger) {
	rg := router.Group("/queue")

	rg.GET("/depth", func(c *gin.Context) {
		depth, err := q.Depth()
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"depth": depth})
	})

	rg.GET("/dead-letters", func(c *gin.Context) {
		dead, err := q.DeadLetters()
		if err != nil {
			log.Error("Dead letter listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"count": len(dead), "messages": dead})
	})

	// POST - Return dead letters to the live queue. With an id only that
	// message is redriven, without one all of them are.
	rg.POST("/redrive", func(c *gin.Context) {
		var req struct {
			ID uint `json:"id"`
		}
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
			return
		}

		if req.ID != 0 {
			if err := q.Redrive(req.ID); err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					c.JSON(http.StatusNotFound, gin.H{"error": "dead letter not found"})
					return
				}
				log.Error("Redrive failed", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"redriven": 1})
			return
		}

		dead, err := q.DeadLetters()
		if err != nil {
			log.Error("Dead letter listing failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "database error"})
			return
		}
		redriven := 0
		for _, m := range dead {
			if err := q.Redrive(m.ID); err != nil {
				log.Error("Redrive failed", zap.Uint("id", m.ID), zap.Error(err))
				continue
			}
			redriven++
		}
		c.JSON(http.StatusOK, gin.H{"redriven": redriven})
	})
}
