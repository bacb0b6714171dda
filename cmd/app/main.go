package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"arichat/internal"
	"arichat/internal/entity"
	"arichat/internal/nlog"
	"arichat/internal/repository"
	"arichat/internal/service"
	"arichat/internal/store"
	"arichat/internal/web"
	"arichat/internal/wire"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func main() {
	cfg, err := internal.LoadConfig(".")
	if err != nil {
		fmt.Printf("Could not load the configuration {%v}\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	appLogger, err := nlog.NewAppLogger(cfg.LogDirectory, cfg.EnableLogging)
	if err != nil {
		fmt.Printf("Could not set up logging {%v}\n", err)
		os.Exit(1)
	}
	go appLogger.Run(ctx)
	defer appLogger.CloseAll()

	db, err := gorm.Open(sqlite.Open(cfg.DBName), &gorm.Config{})
	if err != nil {
		fmt.Printf("Could not open the database {%v}\n", err)
		os.Exit(1)
	}
	if err := db.AutoMigrate(&entity.StoreNode{}, &entity.Credential{}); err != nil {
		fmt.Printf("Could not migrate the database {%v}\n", err)
		os.Exit(1)
	}

	storeLogger, _ := appLogger.RegisterSubsystem("store")
	serviceLogger, _ := appLogger.RegisterSubsystem("service")
	webLogger, _ := appLogger.RegisterSubsystem("web")
	wireLogger, _ := appLogger.RegisterSubsystem("wire")

	st, err := store.Open(repository.NewSQLiteNodeRepository(db))
	if err != nil {
		fmt.Printf("Could not restore the store from disk {%v}\n", err)
		os.Exit(1)
	}
	storeLogger.Logf("Store restored from %s", cfg.DBName)

	authService := service.NewAuthService(repository.NewSQLiteCredentialRepository(db), st, serviceLogger)
	sessionService := service.NewSessionService(st, serviceLogger)
	presenceService := service.NewPresenceService(st, serviceLogger)
	typingService := service.NewTypingService(st, serviceLogger)
	if d := cfg.TypingDebounce(); d > 0 {
		typingService.SetDebounce(d)
	}
	chatListService := service.NewChatListService(st, serviceLogger)
	streamService := service.NewStreamService(st, serviceLogger)
	directoryService := service.NewDirectoryService(st, serviceLogger)

	registry := service.NewClientRegistry(st, presenceService, typingService, serviceLogger)
	authService.OnAuthStateChanged(registry.AuthStateChanged)
	defer registry.CloseAll()

	if cfg.FeedPort > 0 {
		publisher, err := wire.NewPublisher(st, cfg.FeedPort, wireLogger)
		if err != nil {
			fmt.Printf("Could not start the change feed {%v}\n", err)
			os.Exit(1)
		}
		go publisher.Run(ctx)
		defer publisher.Destroy()
	}

	webServer := web.NewWebServer()
	webServer.SetLogger(webLogger)
	webServer.SetServices(&web.Services{
		Auth:      authService,
		Sessions:  sessionService,
		ChatList:  chatListService,
		Stream:    streamService,
		Directory: directoryService,
		Presence:  presenceService,
		Typing:    typingService,
		Registry:  registry,
	})

	if err := webServer.Run(ctx, &web.WebConfig{
		ServerPort:        cfg.HTTPServerPort,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		TemplateDirectory: cfg.TemplateDirectory,
		SecretKey:         cfg.SecretKey,
	}); err != nil {
		fmt.Printf("Server error {%v}\n", err)
	}

	fmt.Printf("Shutting off...\n")
}
