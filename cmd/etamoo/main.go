package main

import (
	"bufio"
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"etamoo/db"
	"etamoo/server"
	"etamoo/types"
)

// config is the optional yaml configuration file; flags override it
// and the in-database server options override both once loaded.
type config struct {
	Port               int     `yaml:"port"`
	CheckpointInterval int     `yaml:"checkpoint_interval"`
	Log                string  `yaml:"log"`
	FgTicks            int64   `yaml:"fg_ticks"`
	BgTicks            int64   `yaml:"bg_ticks"`
	FgSeconds          float64 `yaml:"fg_seconds"`
	BgSeconds          float64 `yaml:"bg_seconds"`
	MaxStackDepth      int     `yaml:"max_stack_depth"`
}

func main() {
	os.Exit(run())
}

func run() int {
	port := flag.Int("port", 7777, "TCP listen port")
	checkpointInterval := flag.Int("checkpoint-interval", 3600, "seconds between checkpoints")
	logFile := flag.String("log", "", "log file (default stderr)")
	configFile := flag.String("config", "", "yaml configuration file")
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: etamoo [options] db-file")
		return 2
	}
	dbPath := flag.Arg(0)

	log := server.NewLogger()
	defer log.Close()

	if *configFile != "" {
		cfg, err := loadConfig(*configFile)
		if err != nil {
			log.Printf("CONFIG: %v", err)
			return 2
		}
		applyConfig(cfg, port, checkpointInterval, logFile)
	}
	if *logFile != "" {
		if err := log.SetFile(*logFile); err != nil {
			fmt.Fprintf(os.Stderr, "etamoo: %v\n", err)
			return 2
		}
	}

	store, err := loadOrBootstrap(dbPath, log)
	if err != nil {
		log.Printf("DATABASE: %v", err)
		return 1
	}

	srv := server.NewServer(store, log)
	srv.DBPath = dbPath
	srv.Dumper = textDumper{}
	srv.ListenFn = func(p int64) (func() error, error) {
		return listenTCP(srv, log, int(p))
	}

	srv.Start()
	defer srv.Stop()

	closeMain, err := listenTCP(srv, log, *port)
	if err != nil {
		log.Printf("LISTEN: %v", err)
		return 2
	}
	defer closeMain()
	log.Printf("LISTENING on port %d", *port)

	ticker := time.NewTicker(time.Duration(*checkpointInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := srv.Checkpoint(); err != nil {
				log.Printf("CHECKPOINT FAILED: %v", err)
			}
		case msg := <-srv.ShutdownRequested():
			if err := srv.Checkpoint(); err != nil {
				log.Printf("FINAL CHECKPOINT FAILED: %v", err)
				return 2
			}
			log.Printf("EXITING: %s", msg)
			return 0
		}
	}
}

func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// applyConfig folds config values under unset flags and pushes limit
// overrides into the option snapshot used before any database load.
func applyConfig(cfg *config, port, checkpointInterval *int, logFile *string) {
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if cfg.Port != 0 && !set["port"] {
		*port = cfg.Port
	}
	if cfg.CheckpointInterval != 0 && !set["checkpoint-interval"] {
		*checkpointInterval = cfg.CheckpointInterval
	}
	if cfg.Log != "" && !set["log"] {
		*logFile = cfg.Log
	}
	opts := *db.DefaultOptions()
	if cfg.FgTicks > 0 {
		opts.FgTicks = cfg.FgTicks
	}
	if cfg.BgTicks > 0 {
		opts.BgTicks = cfg.BgTicks
	}
	if cfg.FgSeconds > 0 {
		opts.FgSeconds = cfg.FgSeconds
	}
	if cfg.BgSeconds > 0 {
		opts.BgSeconds = cfg.BgSeconds
	}
	if cfg.MaxStackDepth > 0 {
		opts.MaxStackDepth = cfg.MaxStackDepth
	}
	db.SetOptions(&opts)
}

// loadOrBootstrap builds the minimal starter world when the database
// file is absent or empty. No loader is wired in, so a non-empty
// existing file is returned as an error.
func loadOrBootstrap(path string, log *server.Logger) (*db.Store, error) {
	if _, err := os.Stat(path); err == nil {
		st, err := os.Stat(path)
		if err == nil && st.Size() > 0 {
			return nil, fmt.Errorf("no loader wired for existing database %s", path)
		}
	}
	log.Printf("BOOTSTRAP: creating minimal world (will dump to %s)", path)
	return bootstrapStore()
}

// listenTCP runs the line-oriented accept loop; each connection feeds
// lines into the server.
func listenTCP(srv *server.Server, log *server.Logger, port int) (func() error, error) {
	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			go serveConn(srv, log, c)
		}
	}()
	return ln.Close, nil
}

type tcpConn struct {
	c net.Conn
}

func (t tcpConn) Send(line string) error {
	_, err := fmt.Fprintf(t.c, "%s\r\n", line)
	return err
}

func (t tcpConn) Close() error { return t.c.Close() }

func serveConn(srv *server.Server, log *server.Logger, c net.Conn) {
	info := srv.Conns.NewConnection(tcpConn{c: c}, c.RemoteAddr().String())
	log.Printf("ACCEPT: %s (#%d)", c.RemoteAddr(), int64(info.ID))

	scanner := bufio.NewScanner(c)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		srv.HandleLine(info.ID, line)
	}
	log.Printf("DISCONNECT: %s (#%d)", c.RemoteAddr(), int64(info.ID))
	srv.Conns.Remove(info.ID)
	c.Close()
}

// textDumper is the stand-in for the external database writer: a
// plain-text object listing, written atomically by db.Checkpoint. The
// production dumper replaces this type.
type textDumper struct{}

func (textDumper) Dump(s *db.Store, f *os.File) error {
	w := bufio.NewWriter(f)
	for _, obj := range s.All() {
		fmt.Fprintf(w, "#%d %q owner=#%d parent=#%d location=#%d flags=%d\n",
			int64(obj.ID), obj.Name, int64(obj.Owner), int64(obj.Parent),
			int64(obj.Location), obj.Flags)
		names, _ := s.PropertyNames(obj.ID)
		for _, n := range names {
			if v, code := s.GetProperty(obj.ID, n); code == types.E_NONE {
				fmt.Fprintf(w, "  .%s = %s\n", n, types.ToLiteral(v))
			}
		}
		verbs, _ := s.VerbNames(obj.ID)
		for _, n := range verbs {
			fmt.Fprintf(w, "  :%s\n", n)
		}
	}
	return w.Flush()
}
