// Command radeap runs the EAP dispatch server: a UDP RADIUS listener that
// routes Access-Request packets carrying EAP-Message through the method
// registry and session store, replying with the composed EAP round, plus a
// Prometheus metrics endpoint. Grounded on the reference bootstrap-then-serve
// main(), generalised from Diameter peer connections to the EAP/RADIUS
// domain this tree now implements.
package main

import (
	"flag"
	"net"
	"net/http"
	"time"

	"github.com/francistor/radeap/core"
	"github.com/francistor/radeap/eap"
	"github.com/francistor/radeap/eapdispatch"
	"github.com/francistor/radeap/eapmethod"
	md5method "github.com/francistor/radeap/eapmethods/md5"
	"github.com/francistor/radeap/eapradius"
	"github.com/francistor/radeap/eapsession"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// serverConfig is the bootstrap configuration read from config/server.json;
// field names mirror the dispatcher's and session store's configuration
// surface.
type serverConfig struct {
	ListenAddr             string            `json:"listen_addr"`
	MetricsAddr            string            `json:"metrics_addr"`
	ClientSecret           string            `json:"client_secret"`
	SessionLifetimeSeconds int               `json:"session_lifetime_seconds"`
	Credentials            map[string]string `json:"credentials"`
	// RealmSQLTemplate/RealmSQLParams name the configuration resources
	// TemplatedMapConfigObject renders into one SQL credential store per
	// realm. Both empty (the default) means no realm routing: every NAI
	// falls through to the in-memory Credentials map.
	RealmSQLTemplate string `json:"realm_sql_template"`
	RealmSQLParams   string `json:"realm_sql_params"`
	Dispatcher       struct {
		Name                       string `json:"name"`
		DefaultEAPType             string `json:"default_eap_type"`
		IgnoreUnknownEAPTypes      bool   `json:"ignore_unknown_eap_types"`
		CiscoAccountingUsernameBug bool   `json:"cisco_accounting_username_bug"`
	} `json:"dispatcher"`
}

func main() {
	debugPtr := flag.Bool("debug", false, "enable debug logging")
	configDirPtr := flag.String("config", "config", "configuration directory")
	flag.Parse()

	core.SetupLogger(*debugPtr)
	logger := core.GetLogger()

	cm := core.NewConfigurationManager(*configDirPtr)
	serverObject := core.NewConfigObject[serverConfig]("server.json")
	cfg := defaultServerConfig()
	if err := serverObject.Update(cm); err != nil {
		logger.Warnw("could not load server.json, running with defaults", "error", err)
	} else {
		cfg = serverObject.Get()
	}

	credentials := md5method.CredentialStore(md5method.MapCredentialStore(cfg.Credentials))
	if cfg.RealmSQLTemplate != "" && cfg.RealmSQLParams != "" {
		realmStores, errs := md5method.BuildRealmCredentialStores(cm, cfg.RealmSQLTemplate, cfg.RealmSQLParams)
		for _, e := range errs {
			logger.Warnw("realm credential store not available", "error", e)
		}
		credentials = md5method.NewMultiRealmCredentialStore(realmStores, credentials)
	}

	registry, err := eapmethod.NewRegistry(map[eap.Type]eapmethod.Method{
		eap.TypeMD5Challenge: md5method.NewMethod(credentials),
	}, cfg.Dispatcher.DefaultEAPType)
	if err != nil {
		logger.Fatalw("method registry bootstrap failed", "error", err)
	}

	store := eapsession.NewStore(time.Duration(cfg.SessionLifetimeSeconds) * time.Second)
	defer store.Close()

	dispatcherConfig := eapdispatch.Config{
		DefaultEAPType:             cfg.Dispatcher.DefaultEAPType,
		IgnoreUnknownEAPTypes:      cfg.Dispatcher.IgnoreUnknownEAPTypes,
		CiscoAccountingUsernameBug: cfg.Dispatcher.CiscoAccountingUsernameBug,
	}
	dispatcher := eapdispatch.NewDispatcher(cfg.Dispatcher.Name, dispatcherConfig, registry, store)

	registerMetrics(dispatcher, store)

	conn, err := net.ListenPacket("udp", cfg.ListenAddr)
	if err != nil {
		logger.Fatalw("opening RADIUS listener", "error", err, "addr", cfg.ListenAddr)
	}

	go serveMetrics(cfg.MetricsAddr)

	logger.Infow("radeap listening", "addr", cfg.ListenAddr, "metrics", cfg.MetricsAddr)
	if err := serve(conn, cfg.ClientSecret, dispatcher); err != nil {
		logger.Fatalw("RADIUS listener terminated", "error", err)
	}
}

func defaultServerConfig() serverConfig {
	var cfg serverConfig
	cfg.ListenAddr = ":1812"
	cfg.MetricsAddr = ":9112"
	cfg.ClientSecret = "secret"
	cfg.SessionLifetimeSeconds = 60
	cfg.Dispatcher.Name = "eap"
	cfg.Dispatcher.DefaultEAPType = "md5"
	return cfg
}

func registerMetrics(d *eapdispatch.Dispatcher, store *eapsession.Store) {
	for _, c := range d.Collectors() {
		prometheus.MustRegister(c)
	}
	for _, c := range store.Collectors() {
		prometheus.MustRegister(c)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		core.GetLogger().Warnw("metrics server stopped", "error", err)
	}
}

// serve implements the RADIUS request loop: decode, run Authorize then
// Authenticate, encode the reply. Accounting, CoA and Post-Auth-Type
// Reject routing are the RADIUS host's policy-engine responsibility; this
// loop exercises Authorize/Authenticate directly as the minimal host a
// standalone deployment needs.
func serve(conn net.PacketConn, secret string, d *eapdispatch.Dispatcher) error {
	buf := make([]byte, 4096)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			return err
		}

		if n < 20 {
			core.GetLogger().Warnw("discarding undersized RADIUS packet", "bytes", n, "from", addr)
			continue
		}
		if !core.ValidateRequestAuthenticator(buf[:n], secret) {
			core.GetLogger().Warnw("discarding RADIUS packet with invalid request authenticator", "from", addr)
			continue
		}

		packet, err := core.NewRadiusPacketFromBytes(buf[:n], secret, core.Zero_authenticator)
		if err != nil {
			core.GetLogger().Warnw("discarding malformed RADIUS packet", "error", err, "from", addr)
			continue
		}

		adapter := eapradius.NewAdapter(packet)
		adapter.ClientSecretValue = secret

		if _, err := d.Authorize(adapter); err != nil {
			core.GetLogger().Warnw("authorize error", "error", err)
			continue
		}
		if _, err := d.Authenticate(adapter); err != nil {
			core.GetLogger().Warnw("authenticate error", "error", err)
			continue
		}

		out, err := adapter.Reply.ToBytes(secret, packet.Identifier, packet.Authenticator, true)
		if err != nil {
			core.GetLogger().Warnw("encoding reply", "error", err)
			continue
		}
		if _, err := conn.WriteTo(out, addr); err != nil {
			core.GetLogger().Warnw("writing reply", "error", err)
		}
	}
}
