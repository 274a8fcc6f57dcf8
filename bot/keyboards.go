package bot

import (
	"fmt"
	"html"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func pageCount(n int) int {
	return (n + PageSize - 1) / PageSize
}

func escapeHTML(s string) string {
	return html.EscapeString(s)
}

func mirrorButtonFor(idx int, label string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(label, mirrorPrefix+strconv.Itoa(idx))
}

func pageButton(label string, page int) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(label, showPagePrefix+strconv.Itoa(page))
}

// promptKeyboard is attached below the first results of a search
func promptKeyboard(pages int) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(viewAllButton, showTelegraphData)),
	}
	if pages > 1 {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(pageButton(nextButton, 2)))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// pageKeyboard has one mirror button per listed index, then the page
// navigation and the publish button
func pageKeyboard(page, pages int, mirrorable []int) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton

	if len(mirrorable) > 0 {
		var row []tgbotapi.InlineKeyboardButton
		for _, idx := range mirrorable {
			row = append(row, mirrorButtonFor(idx, fmt.Sprintf("☁️ %d", idx)))
		}
		rows = append(rows, row)
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 1 {
		nav = append(nav, pageButton(prevButton, page-1))
	}
	if page < pages {
		nav = append(nav, pageButton(nextButton, page+1))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonData(viewAllButton, showTelegraphData)))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}
