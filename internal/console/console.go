// Package console is the operator's terminal seat on the bus: it follows one
// channel with its own cursor and publishes typed lines as the operator.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"

	"github.com/dayuer/officebot/internal/agent"
	"github.com/dayuer/officebot/internal/bus"
	"github.com/dayuer/officebot/internal/utils"
)

// AgentLister reports the running agents. Implemented by *roster.Roster.
type AgentLister interface {
	Infos() []agent.Info
}

// Config configures a Console.
type Config struct {
	Bus      *bus.ChannelBus
	Agents   AgentLister // optional
	Operator string
	Channel  string
	In       io.Reader
	Out      io.Writer
	// PollInterval is how often the followed channel is read.
	PollInterval time.Duration
	// Backlog is how many past messages are shown on join.
	Backlog int
}

// Console is an interactive operator session.
type Console struct {
	cfg Config

	mu      sync.Mutex // guards channel, cursor and writes to Out
	channel string
	cursor  bus.Cursor

	sender  func(a ...any) string
	self    func(a ...any) string
	notice  func(a ...any) string
	faint   func(a ...any) string
	errorFn func(a ...any) string
}

// New creates a console positioned on cfg.Channel (General by default).
func New(cfg Config) *Console {
	if cfg.Operator == "" {
		cfg.Operator = "@operator"
	}
	if cfg.Channel == "" {
		cfg.Channel = "General"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 250 * time.Millisecond
	}
	if cfg.Backlog <= 0 {
		cfg.Backlog = 10
	}
	cfg.Channel = utils.NormalizeChannel(cfg.Channel)
	cfg.Bus.Ensure(cfg.Channel)

	return &Console{
		cfg:     cfg,
		channel: cfg.Channel,
		sender:  color.New(color.FgCyan, color.Bold).SprintFunc(),
		self:    color.New(color.FgGreen, color.Bold).SprintFunc(),
		notice:  color.New(color.FgYellow).SprintFunc(),
		faint:   color.New(color.Faint).SprintFunc(),
		errorFn: color.New(color.FgRed).SprintFunc(),
	}
}

// Channel returns the followed channel.
func (c *Console) Channel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channel
}

// Run shows the backlog, then follows the channel and handles input until
// ctx is cancelled, input ends, or the operator quits.
func (c *Console) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.printf("%s\n", c.notice(fmt.Sprintf("Following #%s as %s. Type /help for commands.", c.channel, c.cfg.Operator)))
	c.join(c.channel)
	c.mu.Unlock()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.cfg.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-readErr:
			c.follow()
			return err
		case <-ticker.C:
			c.follow()
		case line := <-lines:
			if quit := c.Handle(line); quit {
				return nil
			}
		}
	}
}

// follow prints everything published on the channel since the last read,
// except the operator's own lines, which were already on screen as typed.
func (c *Console) follow() {
	c.mu.Lock()
	defer c.mu.Unlock()
	msgs, next := c.cfg.Bus.ReadNew(c.channel, c.cursor)
	if next.Generation != c.cursor.Generation {
		c.printf("%s\n", c.notice(fmt.Sprintf("-- #%s was cleared --", c.channel)))
	}
	c.cursor = next
	for _, m := range msgs {
		if m.Sender == c.cfg.Operator {
			continue
		}
		c.printMessage(m)
	}
}

// Handle processes one input line. It returns true when the operator quits.
func (c *Console) Handle(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		c.publish(line)
		return false
	}

	fields := strings.Fields(line)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	c.mu.Lock()
	defer c.mu.Unlock()
	switch cmd {
	case "/quit", "/exit":
		c.printf("%s\n", c.notice("Goodbye!"))
		return true
	case "/help":
		c.printf("%s", helpText)
	case "/channels":
		for _, name := range c.cfg.Bus.Channels() {
			marker := "  "
			if name == c.channel {
				marker = "* "
			}
			c.printf("%s#%s %s\n", marker, name, c.faint(fmt.Sprintf("(%d)", c.cfg.Bus.Len(name))))
		}
	case "/join":
		if len(args) != 1 {
			c.printf("%s\n", c.errorFn("usage: /join <channel>"))
			break
		}
		target := utils.NormalizeChannel(args[0])
		if !c.cfg.Bus.Exists(target) {
			c.printf("%s\n", c.errorFn(fmt.Sprintf("Channel #%s does not exist.", target)))
			break
		}
		c.join(target)
	case "/history":
		n := c.cfg.Backlog
		if len(args) == 1 {
			v, err := strconv.Atoi(args[0])
			if err != nil || v <= 0 {
				c.printf("%s\n", c.errorFn("usage: /history [n>0]"))
				break
			}
			n = v
		}
		for _, m := range c.cfg.Bus.History(c.channel, n) {
			c.printMessage(m)
		}
	case "/clear":
		c.cfg.Bus.Clear(c.channel)
		c.cursor = c.cfg.Bus.Tail(c.channel)
		c.printf("%s\n", c.notice(fmt.Sprintf("Cleared #%s.", c.channel)))
	case "/agents":
		if c.cfg.Agents == nil {
			c.printf("%s\n", c.errorFn("No agents are running."))
			break
		}
		for _, info := range c.cfg.Agents.Infos() {
			c.printf("%s %s in #%s %s\n", c.sender(info.Name), c.faint("("+string(info.Role)+")"),
				info.Channel, c.faint("["+info.State.String()+"]"))
		}
	default:
		c.printf("%s\n", c.errorFn(fmt.Sprintf("Unknown command %s. Type /help.", cmd)))
	}
	return false
}

func (c *Console) publish(content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m := c.cfg.Bus.Publish(c.channel, c.cfg.Operator, content)
	c.printMessage(m)
}

// join switches to channel and prints its backlog. Caller holds c.mu.
func (c *Console) join(channel string) {
	c.channel = channel
	backlog, cursor := c.cfg.Bus.ReadNew(channel, bus.Cursor{})
	c.cursor = cursor
	if len(backlog) > c.cfg.Backlog {
		backlog = backlog[len(backlog)-c.cfg.Backlog:]
	}
	c.printf("%s\n", c.notice(fmt.Sprintf("== #%s ==", channel)))
	for _, m := range backlog {
		c.printMessage(m)
	}
}

// printMessage renders one line. Caller holds c.mu.
func (c *Console) printMessage(m bus.Message) {
	stamp := c.faint(m.Timestamp.Format("15:04:05"))
	who := c.sender(m.Sender)
	if m.Sender == c.cfg.Operator {
		who = c.self(m.Sender)
	}
	content := m.Content
	if strings.HasPrefix(content, "[Broadcast]") || strings.HasPrefix(content, "[activity]") {
		content = c.notice(content)
	}
	c.printf("%s %s: %s\n", stamp, who, content)
}

func (c *Console) printf(format string, a ...any) {
	fmt.Fprintf(c.cfg.Out, format, a...)
}

const helpText = `Commands:
  /channels        list channels (* = current)
  /join <channel>  follow another channel
  /history [n]     show the last n messages
  /clear           clear the current channel
  /agents          show agent status
  /quit            leave the console
Anything else is posted to the current channel.
`
