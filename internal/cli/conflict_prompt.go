package cli

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/locforge/locforge/internal/sync"
	"github.com/locforge/locforge/internal/ui"
	"github.com/locforge/locforge/internal/ui/tui"
)

// conflictPrompt walks conflicts one at a time on stdin, the plain
// alternative to the full-screen resolver.
type conflictPrompt struct {
	reader *bufio.Reader
}

func newConflictPrompt() *conflictPrompt {
	return &conflictPrompt{reader: bufio.NewReader(os.Stdin)}
}

func (p *conflictPrompt) run(items []tui.ConflictItem) ([]resolution, error) {
	fmt.Printf("\n=== Conflict Resolution ===\n")
	fmt.Printf("Found %d conflict(s) that require resolution.\n\n", len(items))

	var out []resolution
	for i, item := range items {
		fmt.Printf("--- Conflict %d of %d: %s ---\n", i+1, len(items), ui.Bold(item.Ref.String()))
		fmt.Printf("Kind: %s\n\n", item.Kind)
		p.showValues(item)

		res, skipped, err := p.promptOne(item)
		if err != nil {
			return nil, fmt.Errorf("failed to get resolution for %s: %w", item.Ref, err)
		}
		if skipped {
			fmt.Printf("%s\n\n", ui.StatusSkipped("skipped"))
			continue
		}
		out = append(out, res)
		fmt.Printf("%s\n\n", ui.StatusSuccess(fmt.Sprintf("resolved with %s", res.Choice)))
	}
	return out, nil
}

func (p *conflictPrompt) showValues(item tui.ConflictItem) {
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Local:  %s\n", sideValue(item.LocalValue))
	fmt.Printf("Remote: %s\n", sideValue(item.RemoteValue))
	if item.LocalValue != nil && item.RemoteValue != nil {
		fmt.Printf("Diff:  %s\n", tui.RenderValueDiff(*item.LocalValue, *item.RemoteValue))
	}
	fmt.Println(strings.Repeat("-", 50))
}

func sideValue(v *string) string {
	if v == nil {
		return ui.Dim("(deleted)")
	}
	return *v
}

func (p *conflictPrompt) promptOne(item tui.ConflictItem) (resolution, bool, error) {
	fmt.Println("\nHow would you like to resolve this conflict?")
	fmt.Println("  1. Keep local value")
	fmt.Println("  2. Take remote value")
	fmt.Println("  3. Enter a value manually")
	fmt.Println("  4. Skip this entry")
	fmt.Print("\nEnter choice [1-4]: ")

	for {
		response, err := p.reader.ReadString('\n')
		if err != nil {
			return resolution{}, false, fmt.Errorf("failed to read input: %w", err)
		}
		choice, err := strconv.Atoi(strings.TrimSpace(response))
		if err != nil || choice < 1 || choice > 4 {
			fmt.Print("Invalid choice. Enter 1-4: ")
			continue
		}

		switch choice {
		case 1:
			return resolution{Ref: item.Ref, Choice: sync.ResolutionKeepLocal}, false, nil
		case 2:
			return resolution{Ref: item.Ref, Choice: sync.ResolutionKeepRemote}, false, nil
		case 3:
			fmt.Print("New value: ")
			value, err := p.reader.ReadString('\n')
			if err != nil {
				return resolution{}, false, fmt.Errorf("failed to read value: %w", err)
			}
			return resolution{
				Ref:         item.Ref,
				Choice:      sync.ResolutionManual,
				ManualValue: strings.TrimRight(value, "\r\n"),
			}, false, nil
		case 4:
			return resolution{}, true, nil
		}
	}
}
