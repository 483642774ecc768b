//go:build windows

package notification

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
)

// Send shows a tray balloon through PowerShell. The sound hint is ignored.
func (a *Adapter) Send(ctx context.Context, title, message, sound string) error {
	if ctx.Err() != nil {
		return nil
	}

	psPath, err := exec.LookPath("powershell.exe")
	if err != nil {
		a.logger.Debug("notification backend not found", slog.Any("err", err))
		return nil
	}

	cmd := exec.CommandContext(ctx, psPath, "-NoProfile", "-NonInteractive", "-Command", balloonScript(title, message))
	cmd.Stdout = io.Discard
	cmd.Stderr = io.Discard
	if runErr := cmd.Run(); runErr != nil {
		a.logger.Debug("notification failed", slog.Any("err", runErr))
	}
	return nil
}

func balloonScript(title, message string) string {
	return fmt.Sprintf(`Add-Type -AssemblyName System.Windows.Forms
$n = New-Object System.Windows.Forms.NotifyIcon
$n.Icon = [System.Drawing.SystemIcons]::Information
$n.Text = '%s'
$n.BalloonTipTitle = '%s'
$n.BalloonTipText = '%s'
$n.Visible = $true
$n.ShowBalloonTip(5000)
Start-Sleep -Seconds 6
$n.Dispose()`, appName, escapePowerShell(title), escapePowerShell(message))
}

// escapePowerShell escapes a value for a single-quoted PowerShell literal.
func escapePowerShell(value string) string {
	value = strings.ReplaceAll(value, "'", "''")
	value = strings.ReplaceAll(value, "\r", " ")
	return strings.ReplaceAll(value, "\n", " ")
}
