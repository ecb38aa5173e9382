package main

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/ayusman/gestureview/internal/app"
	"github.com/ayusman/gestureview/internal/config"
	"github.com/ayusman/gestureview/internal/logger"
	"github.com/ayusman/gestureview/internal/server"
	"github.com/ayusman/gestureview/internal/tray"
)

func main() {
	fmt.Println("GestureView - Webcam gesture control for the 3D viewer")

	cfg := config.Load()

	log, err := logger.New(cfg.LogDir)
	if err != nil {
		stdlog.Fatalf("Failed to initialize logger: %v", err)
	}
	defer log.Close()

	// Labels and model are required; there is nothing to serve without them.
	a, err := app.New(cfg, app.WithLogger(log))
	if err != nil {
		log.Error("Failed to start: %v", err)
		os.Exit(1)
	}
	defer a.Close()

	a.StartJanitor()

	// Find web directory
	webDir := cfg.StaticDir
	if webDir == "" {
		webDir = findWebDir()
	}
	if webDir != "" {
		log.Info("Serving static files from: %s", webDir)
	}

	srv := server.New(server.Config{
		StaticDir: webDir,
		Store:     a.Store(),
		Camera:    a.Camera(),
		Engine:    a,
		Logger:    log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Addr()
	log.Info("Starting server on %s", addr)

	if !cfg.Tray {
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			log.Error("Server failed: %v", err)
		}
		return
	}

	// The tray owns the main thread; the server runs beside it.
	t := tray.New(a.IsEnabled())
	t.SetDevice(a.Binding().DeviceName())
	t.OnToggle(a.SetEnabled)
	t.OnOpen(func() { openBrowser(log, "http://localhost"+addr) })
	t.OnQuit(stop)

	go func() {
		if err := srv.ListenAndServe(ctx, addr); err != nil {
			log.Error("Server failed: %v", err)
		}
		t.Quit()
	}()

	go watchLastGesture(ctx, a, t)

	t.Run()
	stop()
}

// watchLastGesture mirrors the most recent key code into the tray menu.
func watchLastGesture(ctx context.Context, a *app.App, t *tray.Tray) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if code := string(a.LastGesture()); code != last {
				last = code
				t.SetLastGesture(code)
			}
		}
	}
}

func openBrowser(log *logger.Logger, url string) {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if err := cmd.Start(); err != nil {
		log.Warning("Failed to open browser: %v", err)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.gestureview/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	// Check relative paths from current working directory
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	// Check home directory
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".gestureview", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
