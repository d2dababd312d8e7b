package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/starfederation/datastar-go/datastar"
	"github.com/ytakahashi/quicklist/internal/app"
	"github.com/ytakahashi/quicklist/internal/gateway"
	"github.com/ytakahashi/quicklist/internal/logging"
	"github.com/ytakahashi/quicklist/internal/login"
	"github.com/ytakahashi/quicklist/internal/models"
	"github.com/ytakahashi/quicklist/internal/notify"
)

const (
	clientCookie   = "quicklist_client"
	clientLifetime = 30 * 24 * time.Hour
	keepAlive      = 25 * time.Second
	idleTimeout    = 30 * time.Minute
)

// ClientFactory builds the client for one browser, identified by key.
type ClientFactory func(key string) *app.Client

// WebHandler serves the browser UI. Each browser gets its own app.Client,
// keyed by a cookie, so sessions never leak between browsers.
type WebHandler struct {
	newClient ClientFactory
	renderer  *TemplateRenderer
	log       logging.Logger

	idle time.Duration
	now  func() time.Time

	mu      sync.Mutex
	clients map[string]*webClient

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// WebOption configures a WebHandler.
type WebOption func(*WebHandler)

// WithIdleTimeout sets how long a browser client may go without an open
// /events stream or an action before it is unmounted.
func WithIdleTimeout(d time.Duration) WebOption {
	return func(h *WebHandler) { h.idle = d }
}

// WithNow replaces the clock used for idle bookkeeping.
func WithNow(now func() time.Time) WebOption {
	return func(h *WebHandler) { h.now = now }
}

type webClient struct {
	*app.Client

	// guarded by WebHandler.mu
	active   int
	lastSeen time.Time

	mu      sync.Mutex
	flash   string
	flashes *notify.Signal
}

func (wc *webClient) setFlash(msg string) {
	wc.mu.Lock()
	wc.flash = msg
	wc.mu.Unlock()
	notify.Notify(wc.flashes)
}

func (wc *webClient) currentFlash() string {
	wc.mu.Lock()
	defer wc.mu.Unlock()
	return wc.flash
}

type pageData struct {
	View  app.View
	Flash string
}

// signals mirrors the data-signals declared in index.html.
type signals struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	Text      string `json:"text"`
	Memo      string `json:"memo"`
	MemoOpen  bool   `json:"memoOpen"`
	MemoDraft string `json:"memoDraft"`
}

func NewWebHandler(newClient ClientFactory, renderer *TemplateRenderer, log logging.Logger, opts ...WebOption) *WebHandler {
	h := &WebHandler{
		newClient: newClient,
		renderer:  renderer,
		log:       log,
		idle:      idleTimeout,
		now:       time.Now,
		clients:   map[string]*webClient{},
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	go h.sweep()
	return h
}

func (h *WebHandler) Register(e *echo.Echo) {
	e.Renderer = h.renderer

	e.GET("/", h.Index)
	e.GET("/events", h.Events)
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	e.POST("/login", h.Login)
	e.POST("/logout", h.Logout)
	e.POST("/items", h.AddItem)
	e.POST("/items/preset", h.AddPreset)
	e.POST("/items/:id/toggle", h.Toggle)
	e.POST("/items/:id/delete", h.Delete)
	e.POST("/items/:id/memo/open", h.OpenMemo)
	e.POST("/memo/save", h.SaveMemo)
	e.POST("/memo/cancel", h.CancelMemo)
	e.POST("/undo", h.Undo)
	e.POST("/flash/dismiss", h.DismissFlash)
}

// Close stops idle eviction and unmounts every browser client.
func (h *WebHandler) Close() {
	h.stopOnce.Do(func() { close(h.stop) })
	<-h.done

	h.mu.Lock()
	clients := h.clients
	h.clients = map[string]*webClient{}
	h.mu.Unlock()
	for _, wc := range clients {
		wc.Unmount()
	}
}

func (h *WebHandler) sweep() {
	defer close(h.done)
	if h.idle <= 0 {
		return
	}
	ticker := time.NewTicker(h.idle / 4)
	defer ticker.Stop()
	for {
		select {
		case <-h.stop:
			return
		case <-ticker.C:
			h.evictIdle()
		}
	}
}

// evictIdle unmounts clients with no request in flight whose last request
// ended more than the idle timeout ago.
func (h *WebHandler) evictIdle() {
	now := h.now()
	var idle []*webClient
	h.mu.Lock()
	for key, wc := range h.clients {
		if wc.active == 0 && now.Sub(wc.lastSeen) > h.idle {
			delete(h.clients, key)
			idle = append(idle, wc)
		}
	}
	h.mu.Unlock()

	for _, wc := range idle {
		wc.Unmount()
	}
	if len(idle) > 0 {
		h.log.Info(context.Background(), "unmounted idle clients", "count", len(idle))
	}
}

// client returns the browser's client and marks it in use until release is
// called.
func (h *WebHandler) client(c echo.Context) (wc *webClient, release func(), err error) {
	key := ""
	if ck, err := c.Cookie(clientCookie); err == nil {
		key = ck.Value
	}
	if key == "" {
		key = uuid.New().String()
		c.SetCookie(&http.Cookie{
			Name:     clientCookie,
			Value:    key,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(clientLifetime / time.Second),
		})
	}

	h.mu.Lock()
	wc, ok := h.clients[key]
	if !ok {
		wc = &webClient{Client: h.newClient(key), flashes: notify.NewSignal()}
		h.clients[key] = wc
	}
	wc.active++
	h.mu.Unlock()

	release = func() {
		h.mu.Lock()
		wc.active--
		wc.lastSeen = h.now()
		h.mu.Unlock()
	}

	if !ok {
		if err := wc.Mount(c.Request().Context()); err != nil {
			release()
			h.mu.Lock()
			if h.clients[key] == wc {
				delete(h.clients, key)
			}
			h.mu.Unlock()
			return nil, nil, fmt.Errorf("failed to mount client: %w", err)
		}
	}
	return wc, release, nil
}

func (h *WebHandler) page(wc *webClient) pageData {
	return pageData{View: wc.View(), Flash: wc.currentFlash()}
}

func (h *WebHandler) Index(c echo.Context) error {
	wc, release, err := h.client(c)
	if err != nil {
		return err
	}
	defer release()
	return c.Render(http.StatusOK, "index.html", h.page(wc))
}

// Events streams a fresh rendering of the app whenever the client changes.
func (h *WebHandler) Events(c echo.Context) error {
	wc, release, err := h.client(c)
	if err != nil {
		return err
	}
	defer release()

	changes, cancel := wc.Changes()
	defer cancel()
	flashes, cancelFlashes := wc.flashes.Subscribe()
	defer cancelFlashes()

	sse := datastar.NewSSE(c.Response(), c.Request())
	send := func() {
		html, err := h.renderer.String("app", h.page(wc))
		if err != nil {
			_ = sse.ExecuteScript(fmt.Sprintf(`console.error(%q)`, err.Error()))
			return
		}
		_ = sse.PatchElements(html, datastar.WithSelector("#app-body"), datastar.WithMode(datastar.ElementPatchModeOuter))
	}
	send()

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-sse.Context().Done():
			return nil
		case <-ticker.C:
			_ = sse.PatchSignals([]byte(`{}`))
		case <-changes:
			send()
		case <-flashes:
			send()
		}
	}
}

type action func(ctx context.Context, wc *webClient, sig *signals) (reset map[string]any, err error)

// act runs fn with the request's signals, turns a failure into the flash
// dialog and answers with a patch of the app.
func (h *WebHandler) act(c echo.Context, fn action) error {
	wc, release, err := h.client(c)
	if err != nil {
		return err
	}
	defer release()
	var sig signals
	if err := datastar.ReadSignals(c.Request(), &sig); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	ctx := c.Request().Context()
	reset, err := fn(ctx, wc, &sig)
	if err != nil {
		h.log.Warn(ctx, "action failed", "path", c.Path(), "error", err)
		wc.setFlash(notice(err))
	}

	sse := datastar.NewSSE(c.Response(), c.Request())
	if reset != nil {
		if err := sse.MarshalAndPatchSignals(reset); err != nil {
			return err
		}
	}
	html, err := h.renderer.String("app", h.page(wc))
	if err != nil {
		return err
	}
	return sse.PatchElements(html, datastar.WithSelector("#app-body"), datastar.WithMode(datastar.ElementPatchModeOuter))
}

func notice(err error) string {
	var le loginError
	if errors.As(err, &le) {
		return login.Message(le.err)
	}
	return gateway.Notice(err)
}

func (h *WebHandler) Login(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, sig *signals) (map[string]any, error) {
		if err := wc.Login(ctx, sig.Email, sig.Password); err != nil {
			return nil, loginError{err}
		}
		return map[string]any{"password": ""}, nil
	})
}

// loginError marks a failure of the login form.
type loginError struct{ err error }

func (e loginError) Error() string { return e.err.Error() }

func (e loginError) Unwrap() error { return e.err }

func (h *WebHandler) Logout(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, _ *signals) (map[string]any, error) {
		return nil, wc.Logout(ctx)
	})
}

func (h *WebHandler) AddItem(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, sig *signals) (map[string]any, error) {
		if err := wc.Add(ctx, sig.Text, sig.Memo); err != nil {
			return nil, err
		}
		return map[string]any{"text": "", "memo": "", "memoOpen": false}, nil
	})
}

func (h *WebHandler) AddPreset(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, _ *signals) (map[string]any, error) {
		return nil, wc.AddPreset(ctx, c.QueryParam("text"))
	})
}

func (h *WebHandler) Toggle(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, _ *signals) (map[string]any, error) {
		return nil, wc.Toggle(ctx, c.Param("id"))
	})
}

// Delete only proceeds when the browser's confirm dialog was accepted, which
// the page signals with confirm=yes.
func (h *WebHandler) Delete(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, _ *signals) (map[string]any, error) {
		confirmed := c.QueryParam("confirm") == "yes"
		return nil, wc.Delete(ctx, c.Param("id"), func(models.ShoppingItem) bool { return confirmed })
	})
}

func (h *WebHandler) OpenMemo(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, _ *signals) (map[string]any, error) {
		if err := wc.OpenMemo(c.Param("id")); err != nil {
			return nil, err
		}
		draft := wc.View().Memo
		if draft == nil {
			return nil, nil
		}
		return map[string]any{"memoDraft": draft.Text}, nil
	})
}

func (h *WebHandler) SaveMemo(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, sig *signals) (map[string]any, error) {
		wc.SetMemoText(sig.MemoDraft)
		return nil, wc.SaveMemo(ctx)
	})
}

func (h *WebHandler) CancelMemo(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, _ *signals) (map[string]any, error) {
		wc.CancelMemo()
		return nil, nil
	})
}

func (h *WebHandler) Undo(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, _ *signals) (map[string]any, error) {
		return nil, wc.Undo(ctx)
	})
}

func (h *WebHandler) DismissFlash(c echo.Context) error {
	return h.act(c, func(ctx context.Context, wc *webClient, _ *signals) (map[string]any, error) {
		wc.setFlash("")
		return nil, nil
	})
}
