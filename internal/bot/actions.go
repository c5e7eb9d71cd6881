package bot

import (
	"context"
	"fmt"
	"html"
	"maps"
	"math/rand"
	"slices"
	"strings"
	"time"

	"github.com/go-kit/log/level"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/reinodovo/boto-heapsort/internal/store"
)

func userList(users map[int64]string) string {
	usersStr := ""
	for _, user := range slices.Sorted(maps.Values(users)) {
		usersStr += fmt.Sprintf("- %v\n", html.EscapeString(user))
	}
	return usersStr
}

func userWaitMessageText(sorting store.Sorting) string {
	return fmt.Sprintf("Who will be participating in this poll?\n\n%v", userList(sorting.Users))
}

func userWaitKeyboard() tgbotapi.InlineKeyboardMarkup {
	joinButton := tgbotapi.NewInlineKeyboardButtonData("Me", dataJoinSorting)
	startButton := tgbotapi.NewInlineKeyboardButtonData("Start", dataStartSorting)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(joinButton), tgbotapi.NewInlineKeyboardRow(startButton))
}

func pollMessageText(sorting store.Sorting, id string) string {
	pendingUsers := make(map[int64]string)
	for userId, user := range sorting.Users {
		pendingUsers[userId] = user
	}
	for userId := range sorting.CompareResults[id].Votes {
		delete(pendingUsers, userId)
	}
	str := "Which one is better?"
	if len(pendingUsers) > 0 {
		str = fmt.Sprintf("%v\n\nPending Votes:\n%v", str, userList(pendingUsers))
	}
	return str
}

func pollKeyboard(sorting store.Sorting, id string) tgbotapi.InlineKeyboardMarkup {
	info := sorting.CompareResults[id]
	aVotes := 0
	bVotes := 0
	for _, vote := range info.Votes {
		if vote == store.VoteA {
			aVotes++
		} else {
			bVotes++
		}
	}
	aButton := tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%v - %v votes", info.A, aVotes), pollData(id, optionA))
	bButton := tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%v - %v votes", info.B, bVotes), pollData(id, optionB))
	revokeButton := tgbotapi.NewInlineKeyboardButtonData("Revoke Vote", pollData(id, optionRevoke))
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(aButton), tgbotapi.NewInlineKeyboardRow(bButton), tgbotapi.NewInlineKeyboardRow(revokeButton))
}

func pollData(id, option string) string {
	return dataPollPrefix + id + "_" + option
}

// parsePollData splits "poll_<id>_<option>".
func parsePollData(data string) (id, option string, err error) {
	tokens := strings.Split(strings.TrimPrefix(data, dataPollPrefix), "_")
	if len(tokens) != 2 || tokens[0] == "" || tokens[1] == "" {
		return "", "", errors.Errorf("malformed poll data %q", data)
	}
	return tokens[0], tokens[1], nil
}

func resultMessageText(items []string) string {
	var sb strings.Builder
	sb.WriteString("<b>Result</b>\n")
	for i, item := range items {
		fmt.Fprintf(&sb, "\n%d. %v", i+1, html.EscapeString(item))
	}
	return sb.String()
}

// parseItems reads one item per line, dropping blank lines.
func parseItems(text string) []string {
	items := []string{}
	for _, line := range strings.Split(text, "\n") {
		if item := strings.TrimSpace(line); item != "" {
			items = append(items, item)
		}
	}
	return items
}

func displayName(user *tgbotapi.User) string {
	if user.UserName != "" {
		return user.UserName
	}
	return strings.TrimSpace(user.FirstName + " " + user.LastName)
}

func (bot *TelegramBot) newSorting(chatId int64) error {
	sorting, err := bot.store.GetSorting(chatId)
	if err != nil {
		return err
	}
	if len(sorting.Items) > 0 {
		_, err = bot.SendMessage(chatId, "There is already a sorting happening, use /cancel_sort before starting another", nil)
		return err
	}

	messageId, err := bot.SendMessage(chatId, "Send me the list of items to sort, one per line, as a reply to this message", nil)
	if err != nil {
		return err
	}

	_, err = bot.store.Update(chatId, func(sorting *store.Sorting) error {
		sorting.LastMessageId = messageId
		return nil
	})
	return err
}

func (bot *TelegramBot) cancelSorting(chatId int64) error {
	bot.stopSort(chatId)
	if err := bot.store.ResetSorting(chatId); err != nil {
		return err
	}

	_, err := bot.SendMessage(chatId, "Done, you can start a new sorting with /boto_sort", nil)
	return err
}

func (bot *TelegramBot) receiveSortingItems(chatId int64, text string) error {
	items := parseItems(text)
	if len(items) == 0 {
		_, err := bot.SendMessage(chatId, "I could not find any items, send one item per line", nil)
		return err
	}

	sorting, err := bot.store.GetSorting(chatId)
	if err != nil {
		return err
	}
	if len(sorting.Items) > 0 {
		_, err = bot.SendMessage(chatId, "The items of this sorting are already set, use /cancel_sort to start over", nil)
		return err
	}

	keyboard := userWaitKeyboard()
	messageId, err := bot.SendMessage(chatId, userWaitMessageText(sorting), &keyboard)
	if err != nil {
		return err
	}

	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})

	_, err = bot.store.Update(chatId, func(sorting *store.Sorting) error {
		if len(sorting.Items) > 0 {
			return nil
		}
		sorting.Items = items
		sorting.LastMessageId = messageId
		return nil
	})
	return err
}

func (bot *TelegramBot) joinSorting(chatId int64, user *tgbotapi.User) error {
	sorting, err := bot.store.Update(chatId, func(sorting *store.Sorting) error {
		sorting.Users[user.ID] = displayName(user)
		return nil
	})
	if err != nil {
		return err
	}

	keyboard := userWaitKeyboard()
	return bot.EditMessage(chatId, sorting.LastMessageId, userWaitMessageText(sorting), &keyboard)
}

func (bot *TelegramBot) startSorting(chatId int64) error {
	sorting, err := bot.store.GetSorting(chatId)
	if err != nil {
		return err
	}
	if len(sorting.Items) == 0 {
		_, err = bot.SendMessage(chatId, "There is nothing to sort, use /boto_sort to start", nil)
		return err
	}
	if len(sorting.Users) == 0 {
		_, err = bot.SendMessage(chatId, "Somebody has to join before the sorting can start", nil)
		return err
	}

	sorting, err = bot.store.Update(chatId, func(sorting *store.Sorting) error {
		sorting.Started = true
		return nil
	})
	if err != nil {
		return err
	}
	if err := bot.EditMessage(chatId, sorting.LastMessageId, "Sorting started", nil); err != nil {
		return err
	}
	bot.startSort(sorting)
	return nil
}

func (bot *TelegramBot) receiveVote(chatId int64, userId int64, data string) error {
	id, option, err := parsePollData(data)
	if err != nil {
		return err
	}

	sorting, err := bot.store.GetSorting(chatId)
	if err != nil {
		return err
	}
	if _, ok := sorting.CompareResults[id]; !ok {
		return nil
	}
	bot.assertSorting(sorting)

	if err := bot.comparator.receiveVote(chatId, id, userId, option); err != nil {
		return err
	}

	sorting, err = bot.store.GetSorting(chatId)
	if err != nil {
		return err
	}
	cmpResult, ok := sorting.CompareResults[id]
	if !ok {
		return nil
	}

	text := pollMessageText(sorting, id)
	keyboard := pollKeyboard(sorting, id)
	return bot.EditMessage(chatId, cmpResult.MessageId, text, &keyboard)
}

func (bot *TelegramBot) createPoll(req CompareRequest) error {
	sorting, err := bot.store.GetSorting(req.chatId)
	if err != nil {
		return err
	}

	keyboard := pollKeyboard(sorting, req.id)
	messageId, err := bot.SendMessage(req.chatId, pollMessageText(sorting, req.id), &keyboard)
	if err != nil {
		return err
	}

	_, err = bot.store.Update(req.chatId, func(sorting *store.Sorting) error {
		cmpResult, ok := sorting.CompareResults[req.id]
		if !ok {
			return nil
		}
		cmpResult.MessageId = messageId
		sorting.CompareResults[req.id] = cmpResult
		return nil
	})
	return err
}

func (bot *TelegramBot) startSort(sorting store.Sorting) {
	bot.mtx.Lock()
	defer bot.mtx.Unlock()
	if _, ok := bot.currentSortings[sorting.ChatId]; ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	run := &sortingRun{cancel: cancel}
	bot.currentSortings[sorting.ChatId] = run
	bot.runs.Add(1)
	level.Info(bot.logger).Log("msg", "sorting started", "chat", sorting.ChatId, "items", len(sorting.Items), "users", len(sorting.Users))

	go func() {
		defer bot.runs.Done()
		start := time.Now()
		sorted, err := sortItems(ctx, sorting.Items, bot.comparator, sorting.ChatId)
		bot.sortingResults <- SortingResult{
			chatId:      sorting.ChatId,
			run:         run,
			sortedItems: sorted,
			err:         err,
			duration:    time.Since(start),
		}
	}()
}

// assertSorting restarts the sort of a chat whose polls outlived the process
// that created them. Decided comparisons are replayed from the store.
func (bot *TelegramBot) assertSorting(sorting store.Sorting) {
	if !sorting.Started || len(sorting.Items) == 0 || len(sorting.Users) == 0 {
		return
	}
	bot.startSort(sorting)
}

func (bot *TelegramBot) stopSort(chatId int64) {
	bot.mtx.Lock()
	defer bot.mtx.Unlock()
	if run, ok := bot.currentSortings[chatId]; ok {
		run.cancel()
		delete(bot.currentSortings, chatId)
	}
}

func (bot *TelegramBot) finishSort(chatId int64, run *sortingRun) {
	bot.mtx.Lock()
	defer bot.mtx.Unlock()
	run.cancel()
	if bot.currentSortings[chatId] == run {
		delete(bot.currentSortings, chatId)
	}
}

func (bot *TelegramBot) stopAllSorts() {
	bot.mtx.Lock()
	defer bot.mtx.Unlock()
	for chatId, run := range bot.currentSortings {
		run.cancel()
		delete(bot.currentSortings, chatId)
	}
}

func (bot *TelegramBot) runningSorts() int {
	bot.mtx.Lock()
	defer bot.mtx.Unlock()
	return len(bot.currentSortings)
}
