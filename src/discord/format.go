package discord

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/stake-plus/membership-dao/src/dao"
)

const (
	MaxDiscordMessageLen = 2000

	boxInnerWidth = 76
	ansiDim       = "\u001b[2m"
	ansiReset     = "\u001b[0m"
)

var titles = map[dao.EventKind]string{
	dao.EventMemberJoined:     "New member",
	dao.EventProposalCreated:  "Proposal created",
	dao.EventVoteCast:         "Vote cast",
	dao.EventProposalRevoked:  "Proposal revoked",
	dao.EventProposalExecuted: "Proposal executed",
	dao.EventExecutionFailed:  "Execution failed",
}

// formatNotice renders ev as a boxed ansi code block.
func formatNotice(ev dao.Event) string {
	title, ok := titles[ev.Kind]
	if !ok {
		title = string(ev.Kind)
	}

	var body []string
	if ev.Kind == dao.EventMemberJoined {
		body = append(body, "Member   "+ev.Account.Hex())
	} else {
		body = append(body,
			"Proposal "+ev.ProposalID.Hex(),
			"Status   "+ev.Status.String(),
		)
		switch ev.Kind {
		case dao.EventVoteCast:
			line := fmt.Sprintf("Voter    %s (%s)", ev.Account.Hex(), ev.Choice)
			if ev.Relayed {
				line += " relayed"
			}
			body = append(body, line)
		case dao.EventProposalCreated:
			body = append(body,
				"Proposer "+ev.Proposer.Hex(),
				fmt.Sprintf("Eligible %d", ev.EligibleCount))
		default:
			body = append(body, "By       "+ev.Account.Hex())
		}
		body = append(body, fmt.Sprintf("Tally    for %d / against %d / abstain %d",
			ev.Votes.For, ev.Votes.Against, ev.Votes.Abstain))
	}
	if ev.Error != "" {
		body = append(body, "", "Error: "+ev.Error)
	}
	return truncate(renderBox(title, body), MaxDiscordMessageLen)
}

func renderBox(title string, body []string) string {
	border := strings.Repeat("─", boxInnerWidth+2)
	lines := []string{"╭" + border + "╮", boxLine(title), "├" + border + "┤"}
	for _, raw := range body {
		for _, l := range wrapLine(raw, boxInnerWidth) {
			lines = append(lines, boxLine(l))
		}
	}
	lines = append(lines, "╰"+border+"╯")
	return fmt.Sprintf("```ansi\n%s%s%s\n```", ansiDim, strings.Join(lines, "\n"), ansiReset)
}

func boxLine(content string) string {
	return "│ " + padRight(content, boxInnerWidth) + " │"
}

// wrapLine breaks line into chunks of at most width runes, preferring
// spaces.
func wrapLine(line string, width int) []string {
	if utf8.RuneCountInString(line) <= width {
		return []string{line}
	}
	var out []string
	var cur strings.Builder
	for _, word := range strings.Fields(line) {
		for utf8.RuneCountInString(word) > width {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			r := []rune(word)
			out = append(out, string(r[:width]))
			word = string(r[width:])
		}
		if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+1+utf8.RuneCountInString(word) > width {
			out = append(out, cur.String())
			cur.Reset()
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(word)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

func padRight(s string, width int) string {
	if n := utf8.RuneCountInString(s); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}

func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	const tail = "\n…```"
	r := []rune(s)
	return string(r[:limit-utf8.RuneCountInString(tail)]) + tail
}
