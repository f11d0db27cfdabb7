package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/RamonWill/strata/core"
	"github.com/RamonWill/strata/engine"

	_ "github.com/RamonWill/strata/dialect/duckdb"
	_ "github.com/RamonWill/strata/dialect/postgres"
	_ "github.com/RamonWill/strata/dialect/sqlite"
	_ "github.com/RamonWill/strata/memdb"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	port := flag.Int("port", 3306, "TCP port to listen on")
	dialectName := flag.String("dialect", "sqlite", "Dialect to connect with")
	database := flag.String("database", "", "Database name or file path")
	configFile := flag.String("config", "", "YAML engine configuration file")
	jwtSecret := flag.String("jwtSecret", "", "Enable JWT auth with this HS256 secret")
	tlsCert := flag.String("tlsCert", "", "TLS certificate file (enables TLS with -tlsKey)")
	tlsKey := flag.String("tlsKey", "", "TLS private key file")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("strata SQL server v%s\n", Version)
		return
	}

	var (
		eng *engine.Engine
		err error
	)
	if *configFile != "" {
		var cfg *engine.Config
		cfg, err = engine.LoadConfig(*configFile)
		if err == nil {
			eng, err = cfg.Engine()
		}
	} else {
		eng, err = engine.Open(*dialectName, &core.URL{
			Backend:  *dialectName,
			Database: *database,
		})
	}
	if err != nil {
		log.Fatalf("Failed to assemble engine: %v", err)
	}

	var authConfig *AuthConfig
	if *jwtSecret != "" {
		authConfig = &AuthConfig{Enabled: true, JWTSecret: *jwtSecret}
		log.Println("JWT authentication enabled")
	}

	server := NewServer(eng, authConfig)
	addr := fmt.Sprintf(":%d", *port)

	if *tlsCert != "" || *tlsKey != "" {
		err = server.StartTLS(addr, *tlsCert, *tlsKey)
	} else {
		err = server.Start(addr)
	}
	if err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   strata SQL Server v%-16s ║\n", Version)
	fmt.Println("║   Multi-dialect SQL over TCP          ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on port %d (dialect %s)\n", *port, eng.Dialect().Name())
	fmt.Println("Send SQL queries (one per line), 'quit' to disconnect")
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	server.Stop()
	log.Println("Server stopped")
}
