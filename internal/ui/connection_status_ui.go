package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	irrigoapp "github.com/irrigo/irrigo/internal/app"
	"github.com/irrigo/irrigo/internal/config"
	"github.com/irrigo/irrigo/internal/connectors"
)

type statusIcon int

const (
	statusIconIdle statusIcon = iota
	statusIconConnected
	statusIconWorking
	statusIconPaused
	statusIconFailed
)

type connectionStatusPresenter struct {
	window      fyne.Window
	statusLabel *widget.Label
	sidebarIcon *widget.Icon
	reconnect   *widget.Button

	mu      sync.RWMutex
	current connectors.ConnectionStatus
}

func newConnectionStatusPresenter(
	window fyne.Window,
	statusLabel *widget.Label,
	initialStatus connectors.ConnectionStatus,
	onReconnect func(),
) *connectionStatusPresenter {
	presenter := &connectionStatusPresenter{
		window:      window,
		statusLabel: statusLabel,
		sidebarIcon: widget.NewIcon(statusIconResource(sidebarStatusIcon(initialStatus))),
		current:     initialStatus,
	}
	presenter.reconnect = widget.NewButtonWithIcon("Reconnect", theme.ViewRefreshIcon(), func() {
		if onReconnect != nil {
			onReconnect()
		}
	})
	if onReconnect == nil {
		presenter.reconnect.Disable()
	}
	presenter.applyUI(initialStatus)

	return presenter
}

func (p *connectionStatusPresenter) SidebarIcon() *widget.Icon {
	return p.sidebarIcon
}

func (p *connectionStatusPresenter) ReconnectButton() *widget.Button {
	return p.reconnect
}

func (p *connectionStatusPresenter) Set(status connectors.ConnectionStatus) {
	p.mu.Lock()
	p.current = status
	p.mu.Unlock()
	p.applyUI(status)
}

func (p *connectionStatusPresenter) CurrentStatus() connectors.ConnectionStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()

	return p.current
}

func (p *connectionStatusPresenter) applyUI(status connectors.ConnectionStatus) {
	if p.window != nil {
		p.window.SetTitle(formatWindowTitle(status))
	}
	if p.statusLabel != nil {
		p.statusLabel.SetText(formatConnStatus(status))
	}
	if p.sidebarIcon != nil {
		p.sidebarIcon.SetResource(statusIconResource(sidebarStatusIcon(status)))
	}
	if p.reconnect != nil {
		// Manual reconnect is the way out of an exhausted retry budget.
		if status.State == connectors.ConnectionStateFailed || status.State == connectors.ConnectionStateIdle {
			p.reconnect.Show()
		} else {
			p.reconnect.Hide()
		}
	}
}

func formatConnStatus(status connectors.ConnectionStatus) string {
	text := string(status.State)
	if transportName := transportDisplayName(status.TransportName); transportName != "" {
		text = transportName + " " + text
	}
	if target := strings.TrimSpace(status.Target); target != "" {
		text += " (" + target + ")"
	}
	switch {
	case status.State == connectors.ConnectionStateBackoff && status.Deferred:
		text += ", reconnects when the window is shown"
	case status.State == connectors.ConnectionStateBackoff:
		text += fmt.Sprintf(", retry %d in %s", status.Attempt, status.RetryIn.Round(time.Second))
	case status.State == connectors.ConnectionStateFailed && status.Attempt > 0:
		text += fmt.Sprintf(", gave up after %d attempts", status.Attempt)
	}
	if status.Err != "" {
		text += " (" + status.Err + ")"
	}

	return text
}

func transportDisplayName(name string) string {
	normalized := config.ConnectorType(strings.ToLower(strings.TrimSpace(name)))
	switch normalized {
	case config.ConnectorWebSocket, config.ConnectorSerial:
		return connectorOptionFromType(normalized)
	default:
		return strings.TrimSpace(name)
	}
}

func formatWindowTitle(status connectors.ConnectionStatus) string {
	return fmt.Sprintf("Irrigo %s - %s", irrigoapp.BuildVersion(), formatConnStatus(status))
}

func sidebarStatusIcon(status connectors.ConnectionStatus) statusIcon {
	switch status.State {
	case connectors.ConnectionStateConnected:
		return statusIconConnected
	case connectors.ConnectionStateConnecting, connectors.ConnectionStateBackoff:
		return statusIconWorking
	case connectors.ConnectionStateSuspended:
		return statusIconPaused
	case connectors.ConnectionStateFailed:
		return statusIconFailed
	default:
		return statusIconIdle
	}
}

func statusIconResource(icon statusIcon) fyne.Resource {
	switch icon {
	case statusIconConnected:
		return theme.ConfirmIcon()
	case statusIconWorking:
		return theme.ViewRefreshIcon()
	case statusIconPaused:
		return theme.MediaPauseIcon()
	case statusIconFailed:
		return theme.ErrorIcon()
	default:
		return theme.CancelIcon()
	}
}
