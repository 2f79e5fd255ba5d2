package hyperv

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Client is the PowerShell-backed Driver implementation, grounded on
// original_source's hyperv::commands module: every mutating or querying
// operation shells to powershell.exe, arguments are escaped before
// interpolation, and structured output is parsed from
// `ConvertTo-Json -Compress`.
type Client struct {
	// shell is overridable in tests that want to exercise Client's
	// parsing/escaping logic without a real powershell.exe on PATH.
	shell func(ctx context.Context, script string) (string, error)
}

// New returns a Client that shells to the real powershell.exe.
func New() *Client {
	return &Client{shell: runPowerShell}
}

var _ Driver = (*Client)(nil)

type hyperVInfo struct {
	Name           string `json:"Name"`
	State          int    `json:"State"`
	MemoryAssigned *uint64 `json:"MemoryAssigned"`
	Uptime         *string `json:"Uptime"`
	ID             *string `json:"Id"`
}

func (h hyperVInfo) toSummary() VMSummary {
	s := VMSummary{Name: h.Name, State: fromHyperVState(h.State)}
	if h.MemoryAssigned != nil {
		s.MemoryAssigned = *h.MemoryAssigned
	}
	if h.Uptime != nil {
		s.Uptime = *h.Uptime
	}
	if h.ID != nil {
		s.ID = *h.ID
	}
	return s
}

func runPowerShell(ctx context.Context, script string) (string, error) {
	cmd := exec.CommandContext(ctx, "powershell",
		"-NoProfile", "-NonInteractive", "-ExecutionPolicy", "Bypass", "-Command", script)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return "", classifyExecError(ctx, err, stderr.String(), stdout.String())
	}
	return stdout.String(), nil
}

// classifyExecError turns a process-level failure into a *DriverError.
// A context deadline or a launch failure (powershell.exe missing) is
// Transient; "was not found" in stderr maps to NotFound; anything else
// is Permanent — matching spec.md §7's retry/escalate policy.
func classifyExecError(ctx context.Context, err error, stderr, stdout string) *DriverError {
	if ctx.Err() != nil {
		return &DriverError{Kind: FailureTransient, Message: ctx.Err().Error(), Cause: err}
	}
	msg := strings.TrimSpace(stderr)
	if msg == "" {
		msg = strings.TrimSpace(stdout)
	}
	if msg == "" {
		msg = err.Error()
	}

	kind := FailurePermanent
	lower := strings.ToLower(msg)
	switch {
	case strings.Contains(lower, "was not found") || strings.Contains(lower, "cannot find"):
		kind = FailureNotFound
	case isExecLaunchError(err):
		kind = FailureTransient
	}
	return &DriverError{Kind: kind, Message: msg, Cause: err}
}

func isExecLaunchError(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr)
}

func parseVMSummaries(output string) ([]VMSummary, error) {
	trimmed := strings.TrimSpace(output)
	if trimmed == "" {
		return nil, nil
	}
	if strings.HasPrefix(trimmed, "[") {
		var infos []hyperVInfo
		if err := json.Unmarshal([]byte(trimmed), &infos); err != nil {
			return nil, fmt.Errorf("parse vm list: %w", err)
		}
		out := make([]VMSummary, 0, len(infos))
		for _, i := range infos {
			out = append(out, i.toSummary())
		}
		return out, nil
	}
	var single hyperVInfo
	if err := json.Unmarshal([]byte(trimmed), &single); err != nil {
		return nil, fmt.Errorf("parse vm: %w", err)
	}
	return []VMSummary{single.toSummary()}, nil
}

func (c *Client) run(ctx context.Context, script string) (string, error) {
	return c.shell(ctx, script)
}

func (c *Client) CreateVM(ctx context.Context, cfg CreateVMConfig) error {
	name, err := escapePS(cfg.Name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "CreateVM", Message: err.Error()}
	}
	vhdx, err := escapePS(cfg.VHDXPath)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "CreateVM", Message: err.Error()}
	}
	script := fmt.Sprintf(`
New-VM -Name '%s' -MemoryStartupBytes %dMB -Generation 2 -VHDPath '%s'
Set-VM -Name '%s' -ProcessorCount %d -AutomaticStartAction Nothing -AutomaticStopAction Save
Set-VMMemory -VMName '%s' -DynamicMemoryEnabled $true -MinimumBytes 512MB -MaximumBytes %dMB
`, name, cfg.MemoryMB, vhdx, name, cfg.CPUCount, name, cfg.MemoryMB*2)
	if cfg.SwitchName != "" {
		sw, err := escapePS(cfg.SwitchName)
		if err != nil {
			return &DriverError{Kind: FailurePermanent, Op: "CreateVM", Message: err.Error()}
		}
		script += fmt.Sprintf("Connect-VMNetworkAdapter -VMName '%s' -SwitchName '%s'\n", name, sw)
	}
	_, err = c.run(ctx, script)
	return wrapOp(err, "CreateVM", cfg.Name)
}

func (c *Client) CloneDisk(ctx context.Context, parentPath, childPath string) error {
	parent, err := escapePS(parentPath)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "CloneDisk", Message: err.Error()}
	}
	child, err := escapePS(childPath)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "CloneDisk", Message: err.Error()}
	}
	_, err = c.run(ctx, fmt.Sprintf("New-VHD -Path '%s' -ParentPath '%s' -Differencing", child, parent))
	return wrapOp(err, "CloneDisk", childPath)
}

func (c *Client) Start(ctx context.Context, name string) error {
	esc, err := escapePS(name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "Start", Message: err.Error()}
	}
	_, err = c.run(ctx, fmt.Sprintf("Start-VM -Name '%s'", esc))
	return wrapOp(err, "Start", name)
}

func (c *Client) Save(ctx context.Context, name string) error {
	esc, err := escapePS(name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "Save", Message: err.Error()}
	}
	_, err = c.run(ctx, fmt.Sprintf("Save-VM -Name '%s'", esc))
	return wrapOp(err, "Save", name)
}

func (c *Client) Stop(ctx context.Context, name string, force bool) error {
	esc, err := escapePS(name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "Stop", Message: err.Error()}
	}
	flag := ""
	if force {
		flag = " -TurnOff -Force"
	}
	_, err = c.run(ctx, fmt.Sprintf("Stop-VM -Name '%s'%s", esc, flag))
	return wrapOp(err, "Stop", name)
}

func (c *Client) Checkpoint(ctx context.Context, name, checkpointName string) error {
	vmName, err := escapePS(name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "Checkpoint", Message: err.Error()}
	}
	cpName, err := escapePS(checkpointName)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "Checkpoint", Message: err.Error()}
	}
	_, err = c.run(ctx, fmt.Sprintf("Checkpoint-VM -Name '%s' -SnapshotName '%s'", vmName, cpName))
	return wrapOp(err, "Checkpoint", name)
}

func (c *Client) RestoreCheckpoint(ctx context.Context, name, checkpointName string) error {
	vmName, err := escapePS(name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "RestoreCheckpoint", Message: err.Error()}
	}
	cpName, err := escapePS(checkpointName)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "RestoreCheckpoint", Message: err.Error()}
	}
	_, err = c.run(ctx, fmt.Sprintf("Restore-VMCheckpoint -VMName '%s' -Name '%s' -Confirm:$false", vmName, cpName))
	return wrapOp(err, "RestoreCheckpoint", name)
}

func (c *Client) Remove(ctx context.Context, name string) error {
	esc, err := escapePS(name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "Remove", Message: err.Error()}
	}
	_, err = c.run(ctx, fmt.Sprintf("Remove-VM -Name '%s' -Force", esc))
	return wrapOp(err, "Remove", name)
}

func (c *Client) QueryState(ctx context.Context, name string) (*VMSummary, error) {
	esc, err := escapePS(name)
	if err != nil {
		return nil, &DriverError{Kind: FailurePermanent, Op: "QueryState", Message: err.Error()}
	}
	script := fmt.Sprintf(
		`Get-VM -Name '%s' -ErrorAction SilentlyContinue | Select-Object Name, State, MemoryAssigned, @{N='Uptime';E={$_.Uptime.ToString()}}, Id | ConvertTo-Json -Compress`,
		esc)
	out, err := c.run(ctx, script)
	if err != nil {
		return nil, wrapOp(err, "QueryState", name)
	}
	if strings.TrimSpace(out) == "" {
		return nil, &DriverError{Kind: FailureNotFound, Op: "QueryState", VMName: name, Message: "VM not found"}
	}
	summaries, err := parseVMSummaries(out)
	if err != nil || len(summaries) == 0 {
		return nil, &DriverError{Kind: FailurePermanent, Op: "QueryState", VMName: name, Message: "unparseable Get-VM output", Cause: err}
	}
	return &summaries[0], nil
}

func (c *Client) QueryIP(ctx context.Context, name string) (string, error) {
	esc, err := escapePS(name)
	if err != nil {
		return "", &DriverError{Kind: FailurePermanent, Op: "QueryIP", Message: err.Error()}
	}
	script := fmt.Sprintf(
		`(Get-VMNetworkAdapter -VMName '%s').IPAddresses | Where-Object { $_ -match '^\d+\.\d+\.\d+\.\d+$' } | Select-Object -First 1`,
		esc)
	out, err := c.run(ctx, script)
	if err != nil {
		return "", wrapOp(err, "QueryIP", name)
	}
	return strings.TrimSpace(out), nil
}

func (c *Client) HeartbeatOK(ctx context.Context, name string) (*HeartbeatResult, error) {
	esc, err := escapePS(name)
	if err != nil {
		return nil, &DriverError{Kind: FailurePermanent, Op: "HeartbeatOK", Message: err.Error()}
	}
	script := fmt.Sprintf(
		`(Get-VMIntegrationService -VMName '%s' -Name 'Heartbeat' -ErrorAction SilentlyContinue).PrimaryStatusDescription`,
		esc)
	out, err := c.run(ctx, script)
	if err != nil {
		return nil, wrapOp(err, "HeartbeatOK", name)
	}
	desc := strings.TrimSpace(out)
	return &HeartbeatResult{OK: desc == "OK", Description: desc}, nil
}

func (c *Client) ListVMs(ctx context.Context) ([]VMSummary, error) {
	script := `Get-VM | Select-Object Name, State, MemoryAssigned, @{N='Uptime';E={$_.Uptime.ToString()}}, Id | ConvertTo-Json -Compress`
	out, err := c.run(ctx, script)
	if err != nil {
		return nil, wrapOp(err, "ListVMs", "")
	}
	summaries, err := parseVMSummaries(out)
	if err != nil {
		return nil, &DriverError{Kind: FailurePermanent, Op: "ListVMs", Message: "unparseable Get-VM output", Cause: err}
	}
	return summaries, nil
}

func (c *Client) AttachGPUPartition(ctx context.Context, name string) error {
	esc, err := escapePS(name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "AttachGPUPartition", Message: err.Error()}
	}
	script := fmt.Sprintf(`
Add-VMGpuPartitionAdapter -VMName '%s'
Set-VMGpuPartitionAdapter -VMName '%s' -MinPartitionVRAM 80000000 -MaxPartitionVRAM 100000000 -OptimalPartitionVRAM 100000000 -MinPartitionEncode 80000000 -MaxPartitionEncode 100000000 -OptimalPartitionEncode 100000000
Set-VM -Name '%s' -GuestControlledCacheTypes $true -LowMemoryMappedIoSpace 1GB -HighMemoryMappedIoSpace 32GB
`, esc, esc, esc)
	_, err = c.run(ctx, script)
	return wrapOp(err, "AttachGPUPartition", name)
}

func (c *Client) EnableEnhancedSession(ctx context.Context, name string) error {
	esc, err := escapePS(name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "EnableEnhancedSession", Message: err.Error()}
	}
	_, err = c.run(ctx, fmt.Sprintf("Set-VM -Name '%s' -EnhancedSessionTransportType HvSocket", esc))
	return wrapOp(err, "EnableEnhancedSession", name)
}

func (c *Client) ConnectSwitch(ctx context.Context, name, switchName string) error {
	vmName, err := escapePS(name)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "ConnectSwitch", Message: err.Error()}
	}
	sw, err := escapePS(switchName)
	if err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "ConnectSwitch", Message: err.Error()}
	}
	_, err = c.run(ctx, fmt.Sprintf("Get-VMNetworkAdapter -VMName '%s' | Connect-VMNetworkAdapter -SwitchName '%s'", vmName, sw))
	return wrapOp(err, "ConnectSwitch", name)
}

func (c *Client) HostAvailableMemoryMB(ctx context.Context) (uint64, error) {
	out, err := c.run(ctx, `[math]::Round((Get-CimInstance Win32_OperatingSystem).FreePhysicalMemory / 1024)`)
	if err != nil {
		return 0, wrapOp(err, "HostAvailableMemoryMB", "")
	}
	mb, parseErr := strconv.ParseUint(strings.TrimSpace(out), 10, 64)
	if parseErr != nil {
		return 0, &DriverError{Kind: FailurePermanent, Op: "HostAvailableMemoryMB", Message: "failed to parse free memory", Cause: parseErr}
	}
	return mb, nil
}

func (c *Client) OpenConsole(ctx context.Context, name string) error {
	if _, err := escapePS(name); err != nil {
		return &DriverError{Kind: FailurePermanent, Op: "OpenConsole", Message: err.Error()}
	}
	cmd := exec.CommandContext(ctx, "vmconnect", "localhost", name)
	if err := cmd.Start(); err != nil {
		return &DriverError{Kind: FailureTransient, Op: "OpenConsole", VMName: name, Message: err.Error(), Cause: err}
	}
	return nil
}

func (c *Client) IsAvailable(ctx context.Context) (bool, error) {
	out, err := c.run(ctx, `Get-WindowsOptionalFeature -Online -FeatureName Microsoft-Hyper-V | Select-Object -ExpandProperty State`)
	if err != nil {
		return false, wrapOp(err, "IsAvailable", "")
	}
	return strings.TrimSpace(out) == "Enabled", nil
}

func wrapOp(err error, op, vmName string) error {
	if err == nil {
		return nil
	}
	if de, ok := err.(*DriverError); ok {
		de.Op = op
		de.VMName = vmName
		return de
	}
	return &DriverError{Kind: FailurePermanent, Op: op, VMName: vmName, Message: err.Error(), Cause: err}
}
