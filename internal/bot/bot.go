package bot

import (
	"context"
	"flag"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/reinodovo/boto-heapsort/internal/store"
)

const (
	dataStartSorting = "start_sorting"
	dataJoinSorting  = "join_sorting"
	dataPollPrefix   = "poll_"

	commandNewSorting    = "boto_sort"
	commandCancelSorting = "cancel_sort"
)

type Config struct {
	Token         string `yaml:"token"`
	UpdateTimeout int    `yaml:"update_timeout"`
}

func (cfg *Config) RegisterFlags(f *flag.FlagSet) {
	f.StringVar(&cfg.Token, "telegram.token", "", "Telegram bot API token.")
	f.IntVar(&cfg.UpdateTimeout, "telegram.update-timeout", 60, "Long polling timeout for Telegram updates, in seconds.")
}

// telegramAPI is the part of *tgbotapi.BotAPI the bot uses.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type SortingResult struct {
	chatId      int64
	run         *sortingRun
	sortedItems []string
	err         error
	duration    time.Duration
}

type sortingRun struct {
	cancel context.CancelFunc
}

type TelegramBot struct {
	api            telegramAPI
	updateTimeout  int
	comparator     *Comparator
	store          *store.Store
	logger         log.Logger
	metrics        *metrics
	sortingResults chan SortingResult

	mtx             sync.Mutex
	currentSortings map[int64]*sortingRun

	// runs counts sort goroutines that have not delivered their result yet.
	runs sync.WaitGroup
}

func NewTelegramBot(cfg Config, store *store.Store, logger log.Logger, reg prometheus.Registerer) (*TelegramBot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to telegram")
	}
	level.Info(logger).Log("msg", "authorized on telegram", "account", api.Self.UserName)

	return newTelegramBot(cfg, api, store, logger, reg), nil
}

func newTelegramBot(cfg Config, api telegramAPI, store *store.Store, logger log.Logger, reg prometheus.Registerer) *TelegramBot {
	bot := &TelegramBot{
		api:             api,
		updateTimeout:   cfg.UpdateTimeout,
		store:           store,
		logger:          logger,
		metrics:         newMetrics(reg),
		currentSortings: make(map[int64]*sortingRun),
		sortingResults:  make(chan SortingResult),
	}
	bot.comparator = NewComparator(bot.createPoll, store, logger, bot.metrics)
	go bot.comparator.Start()

	return bot
}

// Start handles updates until ctx is cancelled.
func (bot *TelegramBot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = bot.updateTimeout
	updates := bot.api.GetUpdatesChan(u)

	sortingsDone := make(chan struct{})
	go func() {
		defer close(sortingsDone)
		bot.handleSortings()
	}()
	bot.handleUpdates(ctx, updates)

	level.Info(bot.logger).Log("msg", "stopping bot", "running_sortings", bot.runningSorts())
	bot.api.StopReceivingUpdates()
	bot.stopAllSorts()

	// cancelled runs still report through sortingResults, so it is closed
	// only once all of them are done
	bot.runs.Wait()
	close(bot.sortingResults)
	<-sortingsDone
	bot.comparator.Stop()
	return nil
}

func (bot *TelegramBot) handleSortings() {
	for result := range bot.sortingResults {
		bot.finishSort(result.chatId, result.run)

		if errors.Is(result.err, ErrSortingCancelled) {
			bot.metrics.sortings.WithLabelValues(outcomeCancelled).Inc()
			level.Debug(bot.logger).Log("msg", "sorting cancelled", "chat", result.chatId)
			continue
		}
		if result.err != nil {
			bot.metrics.sortings.WithLabelValues(outcomeFailed).Inc()
			level.Error(bot.logger).Log("msg", "sorting failed", "chat", result.chatId, "err", result.err)
			if _, err := bot.SendMessage(result.chatId, "Sorting failed, start again with /boto_sort", nil); err != nil {
				level.Error(bot.logger).Log("msg", "failed to send message", "chat", result.chatId, "err", err)
			}
			continue
		}

		bot.metrics.sortings.WithLabelValues(outcomeSorted).Inc()
		bot.metrics.sortingDuration.Observe(result.duration.Seconds())
		level.Info(bot.logger).Log("msg", "sorting finished", "chat", result.chatId, "items", len(result.sortedItems), "duration", result.duration)

		_, err := bot.SendMessage(result.chatId, resultMessageText(result.sortedItems), nil)
		if err != nil {
			level.Error(bot.logger).Log("msg", "failed to send result", "chat", result.chatId, "err", err)
		}
		if err := bot.store.ResetSorting(result.chatId); err != nil {
			level.Error(bot.logger).Log("msg", "failed to reset sorting", "chat", result.chatId, "err", err)
		}
	}
}

func (bot *TelegramBot) handleUpdate(update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return bot.handleCallback(update.CallbackQuery)
	}
	if update.Message != nil {
		return bot.handleMessage(update.Message)
	}
	return nil
}

func (bot *TelegramBot) handleCallback(query *tgbotapi.CallbackQuery) error {
	if query.Message == nil || query.Message.Chat == nil || query.From == nil {
		return nil
	}
	chatId := query.Message.Chat.ID

	// stops the spinner on the pressed button
	if _, err := bot.api.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		level.Warn(bot.logger).Log("msg", "failed to answer callback", "chat", chatId, "err", err)
	}

	data := query.Data
	switch {
	case data == dataStartSorting:
		return bot.startSorting(chatId)
	case data == dataJoinSorting:
		return bot.joinSorting(chatId, query.From)
	case strings.HasPrefix(data, dataPollPrefix):
		return bot.receiveVote(chatId, query.From.ID, data)
	}
	return nil
}

func (bot *TelegramBot) handleMessage(message *tgbotapi.Message) error {
	if message.Chat == nil {
		return nil
	}
	chatId := message.Chat.ID

	if message.ReplyToMessage != nil {
		sorting, err := bot.store.GetSorting(chatId)
		if err != nil {
			return err
		}
		if sorting.LastMessageId == message.ReplyToMessage.MessageID {
			return bot.receiveSortingItems(chatId, message.Text)
		}
	}
	if message.IsCommand() {
		switch message.Command() {
		case commandNewSorting:
			return bot.newSorting(chatId)
		case commandCancelSorting:
			return bot.cancelSorting(chatId)
		}
	}
	return nil
}

func (bot *TelegramBot) handleUpdates(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := bot.handleUpdate(update); err != nil {
				level.Error(bot.logger).Log("msg", "failed to handle update", "update", update.UpdateID, "err", err)
			}
		}
	}
}

func (bot *TelegramBot) SendMessage(chatId int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatId, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	sentMsg, err := bot.api.Send(msg)
	if err != nil {
		return 0, errors.Wrapf(err, "sending message to chat %d", chatId)
	}
	return sentMsg.MessageID, nil
}

func (bot *TelegramBot) EditMessage(chatId int64, messageId int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	msg := tgbotapi.NewEditMessageText(chatId, messageId, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if keyboard != nil {
		msg.ReplyMarkup = keyboard
	}
	_, err := bot.api.Send(msg)
	return errors.Wrapf(err, "editing message %d in chat %d", messageId, chatId)
}
