package server

import (
	"context"
	"database/sql"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"desap-backend/internal/analyses"
	"desap-backend/internal/annotate"
	"desap-backend/internal/inference"
	"desap-backend/internal/inference/detector"
	"desap-backend/internal/shared/config"
	"desap-backend/internal/shared/metrics"
	"desap-backend/internal/shared/server/middleware"
	"desap-backend/internal/shared/server/respond"
	"desap-backend/internal/shared/storage/db"
	"desap-backend/internal/shared/storage/object"
	localstore "desap-backend/internal/shared/storage/object/local"
	s3store "desap-backend/internal/shared/storage/object/s3"
)

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(cfg config.Config) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(cfg.CORSAllowOrigin),
		middleware.Auth(cfg.Env),
	)

	// Dependencies
	store := buildStore(cfg)

	var sqlDB *sql.DB
	if cfg.DatabaseURL != "" {
		dbConn, err := db.Connect(context.Background(), cfg.DatabaseURL, db.OptionsFromEnv(db.DefaultServerOptions()))
		if err != nil {
			log.Printf("failed to connect database, falling back to memory: %v", err)
		} else {
			if err := db.RunMigrations(context.Background(), dbConn); err != nil {
				log.Printf("failed to run migrations, falling back to memory: %v", err)
				dbConn = nil
			}
		}
		sqlDB = dbConn
	}

	var repo analyses.Repo
	if sqlDB != nil {
		repo = &analyses.PGRepo{DB: sqlDB}
	} else {
		repo = analyses.NewMemoryRepo()
	}

	client, err := detector.NewClient(cfg.DetectionURL, cfg.DetectionAPIKey)
	if err != nil {
		log.Fatalf("detection client: %v", err)
	}

	var renderer analyses.Renderer
	if cfg.AnnotateMode == "remote" {
		renderer = &inference.AnnotateRenderer{Client: client}
	} else {
		renderer = &annotate.Renderer{}
	}

	svc := &analyses.Service{
		Repo:      repo,
		Store:     store,
		Inference: client,
		Renderer:  renderer,
	}
	handler := analyses.NewHandler(svc)

	api := r.Group("/api/v1")
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())
	handler.RegisterRoutes(api)

	return r
}

func buildStore(cfg config.Config) object.ObjectStore {
	if cfg.ObjectStoreType == "s3" {
		store, err := s3store.New(context.Background(), cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			log.Fatalf("s3 store: %v", err)
		}
		return store
	}
	return localstore.New(cfg.LocalStoreDir)
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
