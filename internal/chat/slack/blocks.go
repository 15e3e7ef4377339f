package slack

import (
	"fmt"

	"github.com/slack-go/slack"

	"github.com/vmglabs/luncheon-roulette/internal/model"
)

// toSlackBlocks maps the neutral block model onto Block Kit. Option blocks
// become sections with a button accessory whose block_id and value both
// carry the option key; voters blocks become context blocks of avatar
// images.
func toSlackBlocks(blocks []model.Block) []slack.Block {
	out := make([]slack.Block, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case model.BlockHeading:
			out = append(out, slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, b.Text, false, false),
				nil, nil))

		case model.BlockDivider:
			out = append(out, slack.NewDividerBlock())

		case model.BlockOption:
			text := fmt.Sprintf("*%s*\n%s", b.Text, b.Description)
			button := slack.NewButtonBlockElement(b.Action, b.Value,
				slack.NewTextBlockObject(slack.PlainTextType, buttonLabel(b.Action), true, false))
			out = append(out, slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, text, false, false),
				nil,
				slack.NewAccessory(button),
				slack.SectionBlockOptionBlockID(b.Value)))

		case model.BlockVoters:
			elems := make([]slack.MixedElement, 0, len(b.Markers))
			for _, m := range b.Markers {
				elems = append(elems, slack.NewImageBlockElement(m.Image, m.Alt))
			}
			out = append(out, slack.NewContextBlock("", elems...))
		}
	}
	return out
}

func buttonLabel(action string) string {
	if action == model.ActionAddChoice {
		return "Add"
	}
	return "Vote"
}
