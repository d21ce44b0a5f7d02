package app

import (
	"context"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"cantinabot/internal/autopost"
	"cantinabot/internal/menu"
	"cantinabot/internal/metrics"
	"cantinabot/internal/storage"
	kit "cantinabot/internal/transport"
	logx "cantinabot/pkg/logx"
)

type handlerFunc func(ctx context.Context, req *request) error

type command struct {
	name        string
	description string
	handle      handlerFunc
}

type request struct {
	chat kit.ChatTarget
	from string
	args []string
	now  time.Time
}

// CommandManager routes incoming chat commands to their handlers on a small
// worker pool, so one slow menu resolution can't stall the others.
type CommandManager struct {
	log      logx.Logger
	adapter  kit.Adapter
	pipeline *menu.Pipeline
	sched    *autopost.Scheduler
	store    storage.Store
	met      *metrics.Metrics
	loc      *time.Location

	commands map[string]command
	order    []string

	jobs chan func()
}

func NewCommandManager(log logx.Logger, adapter kit.Adapter, pipeline *menu.Pipeline, sched *autopost.Scheduler, store storage.Store, met *metrics.Metrics, loc *time.Location) *CommandManager {
	m := &CommandManager{
		log:      log,
		adapter:  adapter,
		pipeline: pipeline,
		sched:    sched,
		store:    store,
		met:      met,
		loc:      loc,
		commands: map[string]command{},
		jobs:     make(chan func(), 64),
	}
	m.register()
	return m
}

func (m *CommandManager) add(name, description string, h handlerFunc) {
	m.commands[name] = command{name: name, description: description, handle: h}
	m.order = append(m.order, name)
}

func (m *CommandManager) register() {
	m.add("meniu", "today's menu (default cafeteria, or /meniu <gau|titu|aka>)", m.handleMenuArg)
	m.add("meniu_gau", "today's Gaudeamus menu", m.menuHandler("gau"))
	m.add("meniu_titu", "today's Titu Maiorescu menu", m.menuHandler("titu"))
	m.add("meniu_aka", "today's Akademos menu", m.menuHandler("aka"))
	m.add("next", "when the next automatic post is due", m.handleNext)
	m.add("history", "recently posted menus", m.handleHistory)
	m.add("ping", "check that the bot is alive", m.handlePing)
	m.add("hello", "say hi", m.handleHello)
	m.add("wise", "a word of wisdom", m.handleWise)
	m.add("praise", "good job cantina bot", m.handlePraise)
	m.add("insult", "why would you use this", m.handleInsult)
	m.add("help", "list commands", m.handleHelp)
}

// DispatchLoop consumes updates until ctx is cancelled. Handlers run on a
// bounded worker pool; a full queue drops the command with a warning rather
// than backing up the poll loop.
func (m *CommandManager) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	m.publishCommandMenu(ctx)

	workers := runtime.NumCPU()
	if workers < 2 {
		workers = 2
	}
	if workers > 4 {
		workers = 4
	}
	m.log.Info("command dispatcher started", logx.Int("workers", workers))

	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					m.log.Error("command worker panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
				}
			}()
			for {
				select {
				case <-ctx.Done():
					return
				case job, ok := <-m.jobs:
					if !ok {
						return
					}
					job()
				}
			}
		}()
	}
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			m.log.Info("command dispatcher stopped")
			return nil
		case up, ok := <-updates:
			if !ok {
				m.log.Info("command dispatcher stopped (updates closed)")
				return nil
			}
			m.route(ctx, up)
		}
	}
}

// publishCommandMenu registers the command list with the platform, when the
// adapter supports it. Best effort.
func (m *CommandManager) publishCommandMenu(ctx context.Context) {
	upd, ok := m.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return
	}
	cmds := make([]kit.BotCommand, 0, len(m.order))
	for _, name := range m.order {
		c := m.commands[name]
		cmds = append(cmds, kit.BotCommand{Command: c.name, Description: c.description})
	}
	if err := upd.UpdateMenuCommands(ctx, cmds); err != nil {
		m.log.Debug("command menu update failed", logx.Err(err))
	}
}

func (m *CommandManager) route(ctx context.Context, up kit.Update) {
	if up.Kind != kit.UpdateMessage || up.Message == nil {
		return
	}
	msg := up.Message
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	cmd, known := m.commands[name]
	if !known {
		return
	}

	req := &request{
		chat: kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID},
		from: msg.FromUsername,
		args: args,
		now:  time.Now().In(m.loc),
	}

	job := func() {
		defer func() {
			if r := recover(); r != nil {
				m.log.Error("command handler panicked", logx.String("cmd", name), logx.Any("panic", r))
			}
		}()
		hctx, cancel := context.WithTimeout(ctx, 3*time.Minute)
		defer cancel()
		if err := cmd.handle(hctx, req); err != nil {
			m.log.Warn("command failed", logx.String("cmd", name), logx.Err(err))
		}
	}

	select {
	case m.jobs <- job:
	default:
		m.log.Warn("command dropped (queue full)", logx.String("cmd", name))
	}
}

// parseCommand extracts the command name and arguments from "/name@bot a b".
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := strings.Fields(text[1:])
	if len(parts) == 0 {
		return "", nil, false
	}
	name := strings.ToLower(parts[0])
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil, false
	}
	return name, parts[1:], true
}

// ---- menu commands ----

func (m *CommandManager) menuHandler(key string) handlerFunc {
	return func(ctx context.Context, req *request) error {
		return m.postMenu(ctx, req, key)
	}
}

func (m *CommandManager) handleMenuArg(ctx context.Context, req *request) error {
	key := menu.DefaultCantinaKey
	if len(req.args) > 0 {
		key = strings.ToLower(req.args[0])
	}
	if menu.ByKey(key) == nil {
		text := fmt.Sprintf("Unknown cafeteria %q. Try one of: %s.", key, strings.Join(menu.Keys(), ", "))
		_, err := m.adapter.SendText(ctx, req.chat, text, nil)
		return err
	}
	return m.postMenu(ctx, req, key)
}

func (m *CommandManager) postMenu(ctx context.Context, req *request, key string) error {
	c := menu.ByKey(key)
	scenario, dates := menu.Classify(c, req.now)

	day, res, err := m.pipeline.ResolveAcrossDates(ctx, c, dates)
	if err != nil {
		m.met.Post("manual", "failure")
		m.log.Warn("menu request failed",
			logx.String("cantina", c.Key),
			logx.String("scenario", string(scenario)),
			logx.Err(err))
		_, serr := m.adapter.SendText(ctx, req.chat, menu.FailureMessage(c), nil)
		return serr
	}

	caption := menu.BuildMessage(c, menu.PostContext{
		Scenario:    scenario,
		RequestDate: menu.Midnight(req.now),
		ActualDate:  day,
		FromCache:   res.FromCache,
	})
	if err := m.adapter.SendAlbum(ctx, req.chat, caption, menu.PageFiles(c, day, res.Pages)); err != nil {
		m.met.Post("manual", "failure")
		return err
	}

	m.met.Post("manual", "success")
	m.log.Info("menu posted",
		logx.String("cantina", c.Key),
		logx.String("scenario", string(scenario)),
		logx.Time("date", day),
		logx.Int("pages", len(res.Pages)),
		logx.Bool("from_cache", res.FromCache))
	m.recordPost(ctx, c, day, req.chat, res)

	// A manual post of today's menu makes the pending automatic attempt for
	// the same day redundant.
	if m.sched != nil && c.AutoPost && menu.SameDay(day, req.now) {
		m.sched.NoteManualSuccess(req.now, req.chat)
	}
	return nil
}

func (m *CommandManager) recordPost(ctx context.Context, c *menu.Cantina, day time.Time, chat kit.ChatTarget, res menu.Result) {
	if m.store == nil {
		return
	}
	err := m.store.AppendPost(ctx, storage.PostRecord{
		At:        time.Now().In(m.loc),
		Cantina:   c.Key,
		MenuDate:  day.Format("2006-01-02"),
		ChatID:    chat.ChatID,
		Pages:     len(res.Pages),
		FromCache: res.FromCache,
		Source:    "manual",
	})
	if err != nil {
		m.log.Warn("post history write failed", logx.Err(err))
	}
}

// ---- status commands ----

func (m *CommandManager) handleNext(ctx context.Context, req *request) error {
	text := "Automatic posting is disabled."
	if m.sched != nil {
		if at, ok := m.sched.NextAttempt(); ok {
			text = fmt.Sprintf("Next automatic post: %s at %s.",
				menu.FormatHumanDate(at), at.In(m.loc).Format("15:04"))
		} else {
			text = "The next automatic post hasn't been scheduled yet."
		}
	}
	_, err := m.adapter.SendText(ctx, req.chat, text, nil)
	return err
}

func (m *CommandManager) handleHistory(ctx context.Context, req *request) error {
	if m.store == nil {
		_, err := m.adapter.SendText(ctx, req.chat, "Post history is disabled.", nil)
		return err
	}
	records, err := m.store.RecentPosts(ctx, 10)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		_, err := m.adapter.SendText(ctx, req.chat, "No menus posted yet.", nil)
		return err
	}

	var b strings.Builder
	b.WriteString("Recently posted menus:\n")
	for _, r := range records {
		cache := ""
		if r.FromCache {
			cache = ", cached"
		}
		fmt.Fprintf(&b, "• %s %s (%s, %d page(s)%s)\n",
			r.Cantina, r.MenuDate, r.Source, r.Pages, cache)
	}
	_, err = m.adapter.SendText(ctx, req.chat, b.String(), nil)
	return err
}

func (m *CommandManager) handlePing(ctx context.Context, req *request) error {
	_, err := m.adapter.SendText(ctx, req.chat, "pong", nil)
	return err
}

func (m *CommandManager) handleHello(ctx context.Context, req *request) error {
	who := req.from
	if who == "" {
		who = "there"
	}
	_, err := m.adapter.SendText(ctx, req.chat, fmt.Sprintf("Hello, %s! Hungry?", who), nil)
	return err
}

func (m *CommandManager) handleHelp(ctx context.Context, req *request) error {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, name := range m.order {
		c := m.commands[name]
		fmt.Fprintf(&b, "/%s - %s\n", c.name, c.description)
	}
	_, err := m.adapter.SendText(ctx, req.chat, b.String(), &kit.SendOptions{DisablePreview: true})
	return err
}

// ---- fun commands ----

func (m *CommandManager) handleWise(ctx context.Context, req *request) error {
	_, err := m.adapter.SendText(ctx, req.chat, pickLine(wisdoms), nil)
	return err
}

func (m *CommandManager) handlePraise(ctx context.Context, req *request) error {
	_, err := m.adapter.SendText(ctx, req.chat, pickLine(praiseResponses), nil)
	return err
}

func (m *CommandManager) handleInsult(ctx context.Context, req *request) error {
	_, err := m.adapter.SendText(ctx, req.chat, pickLine(insultResponses), nil)
	return err
}
