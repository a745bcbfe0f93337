package main

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"release-registry/api"
	"release-registry/blob"
	"release-registry/blob/filesystemBlob"
	"release-registry/blob/memoryBlob"
	"release-registry/blob/s3"
	"release-registry/config"
	"release-registry/storage"
	"release-registry/storage/memory"
	"release-registry/storage/postgres"
)

func main() {
	if err := config.Load(); err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(config.Cfg.LogLevel)
	if err != nil {
		log.Warn().Msgf("unknown log level '%s', defaulting to info", config.Cfg.LogLevel)
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if level > zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	blobStore := initializeBlobStore()
	store := initializeStorage(blobStore)

	server := api.NewServer(store)
	addr := fmt.Sprintf(":%d", config.Cfg.Port)
	log.Info().Str("addr", addr).Msg("release registry listening")
	if err := server.Router().Run(addr); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func initializeBlobStore() blob.Store {
	switch config.Cfg.Blob.Type {
	case "filesystem":
		return initFilesystemBlobStore()
	case "s3":
		return initS3BlobStore()
	case "memory":
		return memoryBlob.New()
	default:
		log.Warn().Msgf("unknown blob store type '%s', defaulting to memory", config.Cfg.Blob.Type)
		return memoryBlob.New()
	}
}

func initFilesystemBlobStore() blob.Store {
	store, err := filesystemBlob.New(config.Cfg.Blob.Directory, config.Cfg.Blob.BaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize filesystem blob store")
	}
	log.Info().
		Str("directory", config.Cfg.Blob.Directory).
		Msg("filesystem blob store initialized")

	return store
}

func initS3BlobStore() blob.Store {
	store, err := s3.New()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize s3 blob store")
	}
	log.Info().Msg("s3 blob store initialized")

	return store
}

func initializeStorage(blobStore blob.Store) storage.Storage {
	switch config.Cfg.Storage.Type {
	case "postgres":
		db, err := postgres.InitDB()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize postgres storage")
		}
		log.Info().Msg("postgres storage initialized")
		return postgres.New(db, blobStore)
	case "memory":
		return memory.New(blobStore)
	default:
		log.Warn().Msgf("unknown storage type '%s', defaulting to memory", config.Cfg.Storage.Type)
		return memory.New(blobStore)
	}
}
