package liveserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"hedge_advisor/internal/advisor"
	"hedge_advisor/internal/core"
	"hedge_advisor/internal/infrastructure/health"
	"hedge_advisor/pkg/cli"
	apperrors "hedge_advisor/pkg/errors"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
)

const (
	maxBodyBytes        = 1 << 20
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

var (
	websocketActiveConnections = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "websocket_active_connections",
		Help: "Current number of active WebSocket connections",
	}, []string{"endpoint"})

	websocketRejectedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "websocket_rejected_total",
		Help: "Total number of rejected WebSocket connections",
	}, []string{"reason"})

	apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "hedge_advisor_api_requests_total",
		Help: "Total number of API requests by route and status code",
	}, []string{"route", "code"})
)

func init() {
	prometheus.MustRegister(websocketActiveConnections)
	prometheus.MustRegister(websocketRejectedTotal)
	prometheus.MustRegister(apiRequestsTotal)
}

// Server exposes the advisor over HTTP and pushes recommendations over WebSocket
type Server struct {
	hub      *Hub
	advisor  *advisor.Service
	feed     core.IPriceFeed
	health   *health.HealthManager
	srv      *http.Server
	logger   core.ILogger
	upgrader websocket.Upgrader
	mu       sync.Mutex

	allowedOrigins []string

	// Connection limits
	maxConnections int
	connSemaphore  chan struct{}

	// Per-IP rate limiting of WebSocket upgrades
	rateLimitEnabled bool
	ipLimiters       sync.Map // map[string]*rate.Limiter
	rateLimit        rate.Limit
	rateBurst        int

	production bool
}

// NewServer creates a server backed by svc. The server subscribes itself to
// svc so every served recommendation is broadcast to WebSocket clients.
func NewServer(hub *Hub, svc *advisor.Service, logger core.ILogger, allowedOrigins []string) *Server {
	if logger != nil {
		logger = logger.WithField("component", "live_server")
	}
	s := &Server{
		hub:              hub,
		advisor:          svc,
		logger:           logger,
		allowedOrigins:   allowedOrigins,
		maxConnections:   1000,
		connSemaphore:    make(chan struct{}, 1000),
		rateLimitEnabled: true,
		rateLimit:        10.0,
		rateBurst:        20,
	}

	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	if svc != nil {
		svc.Subscribe(s)
	}
	return s
}

// SetPriceFeed enables GET /api/price
func (s *Server) SetPriceFeed(feed core.IPriceFeed) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.feed = feed
}

// SetHealth attaches component checks to GET /health
func (s *Server) SetHealth(hm *health.HealthManager) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.health = hm
}

// PublishRecommendation broadcasts a served recommendation
func (s *Server) PublishRecommendation(r advisor.Result) {
	s.hub.Broadcast(NewMessage(TypeRecommendation, r))
}

// checkOrigin validates the WebSocket connection origin against the whitelist
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		s.warn("Rejected WebSocket connection with missing Origin header", "remote_addr", r.RemoteAddr)
		websocketRejectedTotal.WithLabelValues("missing_origin").Inc()
		return false
	}

	parsedOrigin, err := url.Parse(origin)
	if err != nil {
		s.warn("Rejected WebSocket connection with invalid Origin", "origin", origin, "error", err)
		websocketRejectedTotal.WithLabelValues("invalid_origin").Inc()
		return false
	}
	originStr := parsedOrigin.Scheme + "://" + parsedOrigin.Host

	for _, allowed := range s.allowedOrigins {
		if allowed == "*" {
			if s.production {
				s.warn("Rejected wildcard origin in production mode", "origin", origin, "remote_addr", r.RemoteAddr)
				websocketRejectedTotal.WithLabelValues("invalid_origin").Inc()
				return false
			}
			s.warn("WebSocket connection allowed via wildcard origin", "origin", origin, "remote_addr", r.RemoteAddr)
			return true
		}
		if originStr == allowed {
			return true
		}
	}

	s.warn("Rejected WebSocket connection from unauthorized origin",
		"origin", origin,
		"remote_addr", r.RemoteAddr,
		"allowed_origins", s.allowedOrigins)
	websocketRejectedTotal.WithLabelValues("invalid_origin").Inc()
	return false
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/recommendations", s.handleRecommend)
	mux.HandleFunc("/api/sweep", s.handleSweep)
	mux.HandleFunc("/api/profiles", s.handleProfiles)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/price", s.handlePrice)
	return mux
}

// Start serves on addr until ctx is cancelled
func (s *Server) Start(ctx context.Context, addr string) error {
	s.mu.Lock()
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.srv
	s.mu.Unlock()

	s.info("Starting live server", "addr", addr)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Stop(shutdownCtx)
	}
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.srv == nil {
		return nil
	}
	s.info("Stopping live server")
	return s.srv.Shutdown(ctx)
}

type sweepRequest struct {
	advisor.Request
	From  float64 `json:"from"`
	To    float64 `json:"to"`
	Steps int     `json:"steps"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	const route = "recommendations"
	if !allowMethod(w, r, http.MethodPost, route) {
		return
	}

	var req advisor.Request
	if !decodeBody(w, r, &req, route) {
		return
	}

	res, err := s.advisor.Recommend(r.Context(), req)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	writeJSON(w, http.StatusOK, route, res)
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	const route = "sweep"
	if !allowMethod(w, r, http.MethodPost, route) {
		return
	}

	var req sweepRequest
	if !decodeBody(w, r, &req, route) {
		return
	}

	points, err := s.advisor.Sweep(r.Context(), req.Request, req.From, req.To, req.Steps)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	writeJSON(w, http.StatusOK, route, map[string]interface{}{"points": points})
}

func (s *Server) handleProfiles(w http.ResponseWriter, r *http.Request) {
	const route = "profiles"
	if !allowMethod(w, r, http.MethodGet, route) {
		return
	}
	writeJSON(w, http.StatusOK, route, map[string]interface{}{"profiles": s.advisor.Profiles()})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	const route = "history"
	if !allowMethod(w, r, http.MethodGet, route) {
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, route, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = n
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	entries, err := s.advisor.History(r.Context(), limit)
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	writeJSON(w, http.StatusOK, route, map[string]interface{}{"entries": entries})
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	const route = "price"
	if !allowMethod(w, r, http.MethodGet, route) {
		return
	}

	s.mu.Lock()
	feed := s.feed
	s.mu.Unlock()
	if feed == nil {
		writeJSON(w, http.StatusServiceUnavailable, route, errorResponse{Error: "price feed not configured"})
		return
	}

	symbol, err := cli.NormalizeSymbol(r.URL.Query().Get("symbol"))
	if err != nil {
		s.writeError(w, route, err)
		return
	}
	price, err := feed.Price(r.Context(), symbol)
	if err != nil {
		s.writeError(w, route, err)
		return
	}

	body := map[string]interface{}{"symbol": symbol, "price": price}
	s.hub.Broadcast(NewMessage(TypePrice, body))
	writeJSON(w, http.StatusOK, route, body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	hm := s.health
	s.mu.Unlock()

	response := map[string]interface{}{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"time":    time.Now().Unix(),
	}
	if s.advisor != nil {
		response["sweep_pool"] = s.advisor.PoolStats()
	}
	code := http.StatusOK
	if hm != nil {
		components := hm.GetStatus(r.Context())
		response["components"] = components
		for _, status := range components {
			if status != "Healthy" {
				response["status"] = "degraded"
				code = http.StatusServiceUnavailable
			}
		}
	}
	writeJSON(w, code, "health", response)
}

func (s *Server) writeError(w http.ResponseWriter, route string, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput), errors.Is(err, apperrors.ErrTooManySteps):
		code = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrPriceUnavailable):
		code = http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		code = http.StatusServiceUnavailable
	}
	if code == http.StatusInternalServerError {
		s.warn("Request failed", "route", route, "error", err)
	}
	writeJSON(w, code, route, errorResponse{Error: err.Error()})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method, route string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, route, errorResponse{Error: "method not allowed"})
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, out interface{}, route string) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		writeJSON(w, http.StatusBadRequest, route, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, route string, body interface{}) {
	apiRequestsTotal.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

// handleWebSocket handles WebSocket upgrade and client management
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Rate limits apply before the upgrade consumes resources
	if s.rateLimitEnabled {
		ip := s.getRemoteIP(r)
		if !s.getIPLimiter(ip).Allow() {
			s.warn("IP rate limit exceeded", "ip", ip)
			websocketRejectedTotal.WithLabelValues("rate_limit").Inc()
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
	}

	s.mu.Lock()
	sem, maxConns := s.connSemaphore, s.maxConnections
	s.mu.Unlock()

	select {
	case sem <- struct{}{}:
		websocketActiveConnections.WithLabelValues(r.URL.Path).Inc()
		defer func() {
			<-sem
			websocketActiveConnections.WithLabelValues(r.URL.Path).Dec()
		}()
	default:
		s.warn("Max connections reached", "max", maxConns)
		websocketRejectedTotal.WithLabelValues("connection_limit").Inc()
		http.Error(w, "Server busy", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.warn("WebSocket upgrade failed", "error", err)
		return
	}

	clientID := uuid.New().String()
	client := NewClient(clientID)
	s.hub.Register(client)
	s.info("Client connected", "client_id", clientID, "remote_addr", r.RemoteAddr)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.writePump(conn, client)
	}()
	go func() {
		defer wg.Done()
		s.readPump(conn, client)
	}()
	wg.Wait()

	s.hub.Unregister(client)
	_ = conn.Close()
	s.info("Client disconnected", "client_id", clientID)
}

// writePump sends messages from hub to WebSocket connection
func (s *Server) writePump(conn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.GetSendChan():
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				s.warn("Write error", "client_id", client.id, "error", err)
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection so pong and close frames are processed.
// Clients never send data.
func (s *Server) readPump(conn *websocket.Conn, client *Client) {
	defer s.hub.Unregister(client)

	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.warn("Read error", "client_id", client.id, "error", err)
			}
			return
		}
	}
}

// ClientCount returns the number of connected clients
func (s *Server) ClientCount() int {
	return s.hub.ClientCount()
}

// SetProduction sets the production mode
func (s *Server) SetProduction(prod bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.production = prod
}

// SetMaxConnections updates the maximum number of concurrent connections
func (s *Server) SetMaxConnections(max int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.maxConnections = max
	s.connSemaphore = make(chan struct{}, max)
}

// SetRateLimit updates the per-IP rate limit. Existing limiters are discarded.
func (s *Server) SetRateLimit(limit float64, burst int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimit = rate.Limit(limit)
	s.rateBurst = burst
	s.ipLimiters.Range(func(key, _ interface{}) bool {
		s.ipLimiters.Delete(key)
		return true
	})
}

func (s *Server) getRemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Server) getIPLimiter(ip string) *rate.Limiter {
	if val, ok := s.ipLimiters.Load(ip); ok {
		return val.(*rate.Limiter)
	}
	s.mu.Lock()
	limiter := rate.NewLimiter(s.rateLimit, s.rateBurst)
	s.mu.Unlock()
	actual, _ := s.ipLimiters.LoadOrStore(ip, limiter)
	return actual.(*rate.Limiter)
}

func (s *Server) info(msg string, fields ...interface{}) {
	if s.logger != nil {
		s.logger.Info(msg, fields...)
	}
}

func (s *Server) warn(msg string, fields ...interface{}) {
	if s.logger != nil {
		s.logger.Warn(msg, fields...)
	}
}
