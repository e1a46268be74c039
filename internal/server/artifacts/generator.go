// Package artifacts provisions the client-side material for a VPN key: the
// vless:// connection string and a QR code of it, stored for later display.
package artifacts

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/vpnkeeper/internal/server/config"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/models"
	"github.com/dmitrijs2005/vpnkeeper/internal/server/vless"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// QRSize is the side of the rendered PNG in pixels.
const QRSize = 300

// Store keeps rendered QR images. Put returns the reference saved with the
// key; Get returns the bytes for that reference.
type Store interface {
	Put(ctx context.Context, key string, png []byte) (ref string, err error)
	Get(ctx context.Context, ref string) ([]byte, error)
}

var encodeQR = func(content string) ([]byte, error) {
	return qrcode.Encode(content, qrcode.Medium, QRSize)
}

// Generator implements services.ArtifactGenerator.
type Generator struct {
	store  Store
	params vless.Params
	port   int
	newID  func() string
	now    func() time.Time
}

func NewGenerator(store Store, cfg config.VLESS) *Generator {
	return &Generator{
		store: store,
		params: vless.Params{
			Network:     cfg.Network,
			Security:    cfg.Security,
			Flow:        cfg.Flow,
			SNI:         cfg.SNI,
			Fingerprint: cfg.Fingerprint,
			ShortID:     cfg.ShortID,
		},
		port:  cfg.Port,
		newID: uuid.NewString,
		now:   time.Now,
	}
}

// StorageKey lays QR images out by day.
func StorageKey(d time.Time, id string) string {
	return fmt.Sprintf("qr/%d/%02d/%02d/%s.png", d.Year(), d.Month(), d.Day(), id)
}

// Generate mints a fresh client id for server, renders its connection string
// to a QR PNG and stores it.
func (g *Generator) Generate(ctx context.Context, server *models.Server, name string) (string, string, error) {
	id := g.newID()

	p := g.params
	if server.PublicKey != nil {
		p.PublicKey = *server.PublicKey
	}
	port := server.Port
	if port == 0 {
		port = g.port
	}

	connection := vless.Build(id, server.IPAddress, port, p, name)

	png, err := encodeQR(connection)
	if err != nil {
		return "", "", fmt.Errorf("encode qr: %w", err)
	}

	ref, err := g.store.Put(ctx, StorageKey(g.now(), id), png)
	if err != nil {
		return "", "", fmt.Errorf("store qr: %w", err)
	}
	return connection, ref, nil
}
