package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
	qrcode "github.com/skip2/go-qrcode"
	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/tkamdem/livrazone/core/config"
	"github.com/tkamdem/livrazone/ingest"
)

// ErrSessionLocked means another process owns this client id's session.
var ErrSessionLocked = errors.New("whatsapp: session directory locked by another process")

// Client owns one WhatsApp session: the device store keyed by client id,
// the whatsmeow connection and the inbound event fan-out.
type Client struct {
	cfg      config.WhatsappConfig
	wa       *whatsmeow.Client
	db       *sqlstore.Container
	lockPath string
	logLevel string

	mu      sync.RWMutex
	onEvent func(ingest.RawEvent)

	groupNames sync.Map // external group id -> display name
}

// NewClient opens the session store for cfg.ClientID under cfg.SessionDir.
// The directory is guarded by an exclusive lock file so two processes can
// never share one session.
func NewClient(ctx context.Context, cfg config.WhatsappConfig, debug bool) (*Client, error) {
	if err := os.MkdirAll(cfg.SessionDir, 0o755); err != nil {
		return nil, fmt.Errorf("whatsapp: create session dir: %w", err)
	}

	lockPath := filepath.Join(cfg.SessionDir, cfg.ClientID+".lock")
	if err := acquireLock(lockPath); err != nil {
		return nil, err
	}

	level := "ERROR"
	if debug {
		level = "INFO"
	}
	dbURI := fmt.Sprintf("file:%s?_foreign_keys=on", filepath.Join(cfg.SessionDir, "whatsapp-"+cfg.ClientID+".db"))
	container, err := sqlstore.New(ctx, "sqlite3", dbURI, waLog.Stdout("Database", level, true))
	if err != nil {
		releaseLock(lockPath)
		return nil, fmt.Errorf("whatsapp: open session store: %w", err)
	}

	device, err := container.GetFirstDevice(ctx)
	if err != nil {
		releaseLock(lockPath)
		return nil, fmt.Errorf("whatsapp: load device: %w", err)
	}
	if device == nil {
		device = container.NewDevice()
	}

	osName := "livrazone"
	store.DeviceProps.Os = &osName

	c := &Client{
		cfg:      cfg,
		db:       container,
		lockPath: lockPath,
		logLevel: level,
	}
	wa := whatsmeow.NewClient(device, waLog.Stdout("Client", level, true))
	wa.EnableAutoReconnect = true
	wa.AutoTrustIdentity = true
	wa.AddEventHandler(c.handle)
	c.wa = wa
	return c, nil
}

// OnEvent installs the inbound message callback. Must be set before Connect.
func (c *Client) OnEvent(fn func(ingest.RawEvent)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

// Connect brings the session online. A fresh device goes through the QR
// pairing flow; the code image lands in the session directory.
func (c *Client) Connect(ctx context.Context) error {
	if c.wa.Store.ID != nil {
		return c.wa.Connect()
	}

	ch, err := c.wa.GetQRChannel(ctx)
	if err != nil {
		if errors.Is(err, whatsmeow.ErrQRStoreContainsID) {
			return c.wa.Connect()
		}
		return fmt.Errorf("whatsapp: qr channel: %w", err)
	}
	go func() {
		for evt := range ch {
			switch evt.Event {
			case "code":
				qrPath := filepath.Join(c.cfg.SessionDir, "scan-"+c.cfg.ClientID+".png")
				if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, qrPath); err != nil {
					logrus.Errorf("[WA] Failed to write QR image: %v", err)
				} else {
					logrus.Infof("[WA] Scan %s to pair this session", qrPath)
				}
			case "success":
				logrus.Info("[WA] Pairing successful")
			default:
				logrus.Warnf("[WA] QR event %s: %v", evt.Event, evt.Error)
			}
		}
	}()
	return c.wa.Connect()
}

// Close disconnects, closes the store and releases the session lock.
func (c *Client) Close() {
	if c.wa != nil {
		c.wa.Disconnect()
	}
	if c.db != nil {
		c.db.Close()
	}
	releaseLock(c.lockPath)
}

// IsLoggedIn reports whether the session holds paired credentials.
func (c *Client) IsLoggedIn() bool {
	return c.wa != nil && c.wa.IsLoggedIn()
}

func (c *Client) handle(rawEvt any) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		c.handleMessage(evt)
	case *events.PairSuccess:
		logrus.Infof("[WA] Paired with %s", evt.ID.String())
	case *events.Connected:
		logrus.Info("[WA] Connected")
	case *events.LoggedOut:
		logrus.Warn("[WA] Session logged out remotely; a new pairing is required")
	case *events.StreamReplaced:
		logrus.Error("[WA] Stream replaced by another connection, shutting down session")
		c.wa.Disconnect()
	}
}

// acquireLock creates the lock file exclusively. A stale file from a
// crashed process must be removed by the operator; the pid inside tells
// them which process held it.
func acquireLock(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("%w: %s", ErrSessionLocked, path)
		}
		return fmt.Errorf("whatsapp: create lock file: %w", err)
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	return f.Close()
}

func releaseLock(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logrus.Errorf("[WA] Failed to remove lock file %s: %v", path, err)
	}
}
