// Setup and initialization: config, logging, metrics, the record log
// replay, the relay client, and the two client-facing listeners (framed
// TCP and websocket).

package main

import (
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/handlers"
	jcr "github.com/tinode/jsonco"
	"go.uber.org/zap"

	"github.com/rivulet/chat/server/connections"
	"github.com/rivulet/chat/server/relay"
	"github.com/rivulet/chat/server/store/types"
)

type configType struct {
	// Address of the framed TCP listener.
	Listen string `json:"listen"`
	// Address of the HTTP listener (websocket endpoint, metrics).
	HTTPListen string `json:"http_listen"`
	// This server's identity within the relay federation.
	ServerID uint64 `json:"server_id"`
	// Shared secret presented to the relay.
	Secret string `json:"secret"`
	// 16-byte key for the id generator's cipher, base64.
	UIDKey []byte `json:"uid_key"`
	// Path of the record log; empty disables persistence.
	StoreFile string `json:"store_file"`
	// Relay daemon address; empty disables cross-server sync.
	RelayAddr string `json:"relay_addr"`

	RelayPullMillis int `json:"relay_pull_ms"`
	RelayBatch      int `json:"relay_batch"`
	SaveMillis      int `json:"save_ms"`
}

const (
	defaultRelayPullMillis = 5000
	defaultRelayBatch      = 32
	defaultSaveMillis      = 30000
)

func loadConfig(path string) (configType, error) {
	var config configType

	file, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer file.Close()

	jr := jcr.New(file)
	if err = json.NewDecoder(jr).Decode(&config); err != nil {
		switch jerr := err.(type) {
		case *json.UnmarshalTypeError:
			lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
			log.Fatalf("Config unmarshal error in %s at %d:%d (offset %d bytes): %s",
				jerr.Field, lnum, cnum, jerr.Offset, jerr.Error())
		case *json.SyntaxError:
			lnum, cnum, _ := jr.LineAndChar(jerr.Offset)
			log.Fatalf("Config syntax error at %d:%d (offset %d bytes): %s",
				lnum, cnum, jerr.Offset, jerr.Error())
		default:
			return config, err
		}
	}

	if config.RelayPullMillis <= 0 {
		config.RelayPullMillis = defaultRelayPullMillis
	}
	if config.RelayBatch <= 0 {
		config.RelayBatch = defaultRelayBatch
	}
	if config.SaveMillis <= 0 {
		config.SaveMillis = defaultSaveMillis
	}
	return config, nil
}

func main() {
	configFile := flag.String("config", "./chat.conf", "Path to config file.")
	listenOn := flag.String("listen", "", "Override the configured TCP listen address.")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logging: ", err)
	}
	defer logger.Sync()

	config, err := loadConfig(*configFile)
	if err != nil {
		logger.Fatal("failed to load config", zap.String("path", *configFile), zap.Error(err))
	}
	if *listenOn != "" {
		config.Listen = *listenOn
	}

	serverID := types.Uid(config.ServerID)
	if serverID.IsZero() {
		logger.Fatal("server_id must be set and non-zero")
	}

	var rly relay.Relay
	if config.RelayAddr != "" {
		rly = relay.NewClient(config.RelayAddr, logger.Named("relay"))
	}

	var records *RecordLog
	if config.StoreFile != "" {
		records = newRecordLog(config.StoreFile, logger.Named("records"))
	}

	srv, err := newServer(serverOptions{
		id:         serverID,
		secret:     config.Secret,
		uidKey:     config.UIDKey,
		relay:      rly,
		records:    records,
		relayPull:  time.Duration(config.RelayPullMillis) * time.Millisecond,
		relayBatch: config.RelayBatch,
		saveEvery:  time.Duration(config.SaveMillis) * time.Millisecond,
	}, logger.Named("server"))
	if err != nil {
		logger.Fatal("failed to construct server", zap.Error(err))
	}

	// Rebuild state from the record log before accepting anything.
	if err := records.Replay(srv.model, srv.controller); err != nil {
		logger.Fatal("record replay failed", zap.Error(err))
	}

	mux := http.NewServeMux()
	statsInit(mux, "/metrics")
	statsRegisterInt("UsersCreatedTotal")
	statsRegisterInt("ConversationsCreatedTotal")
	statsRegisterInt("MessagesCreatedTotal")
	statsRegisterInt("RelayBundlesAppliedTotal")
	statsRegisterInt("RelayBundlesPushedTotal")
	mux.Handle("/v0/channel", connections.ServeWebsocket(srv.HandleConnection, logger.Named("ws")))

	if config.HTTPListen != "" {
		go func() {
			httpLogger := handlers.CombinedLoggingHandler(os.Stdout, mux)
			if err := http.ListenAndServe(config.HTTPListen, httpLogger); err != nil {
				logger.Error("http listener stopped", zap.Error(err))
			}
		}()
	}

	listener, err := net.Listen("tcp", config.Listen)
	if err != nil {
		logger.Fatal("failed to listen", zap.String("addr", config.Listen), zap.Error(err))
	}
	logger.Info("server started",
		zap.Stringer("id", serverID),
		zap.String("listen", config.Listen),
		zap.String("http", config.HTTPListen))

	srv.start()
	go connections.ServeTCP(listener, srv.HandleConnection, logger.Named("accept"))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logger.Info("shutting down")
	listener.Close()
	srv.stop()
}
