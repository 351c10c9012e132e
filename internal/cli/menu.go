package cli

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/trisolve/trisolve/internal/config"
)

var (
	menuTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	menuItemStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// exampleProblems are the stock demonstrations offered by the menu.
var exampleProblems = []string{
	"What are the key differences in architecture and performance between RISC-V and ARM processors, and what are the implications for the future of mobile computing?",
	"Design a sustainable energy solution for a small rural community with limited grid access.",
	"Analyze the potential impact of quantum computing on current encryption methods and propose transition strategies.",
}

// runMenu drives the interactive loop: pick an example, enter a custom
// problem, or exit. Each selection runs one full solve against the daemon.
func runMenu(cmd *cobra.Command, cfg *config.Config) error {
	in := bufio.NewScanner(cmd.InOrStdin())
	out := cmd.OutOrStdout()

	fmt.Fprintln(out, menuTitleStyle.Render("Trisolve – multi-model problem solver"))
	fmt.Fprintln(out, "Choose a test problem or enter your own:")
	for i, problem := range exampleProblems {
		fmt.Fprintln(out, menuItemStyle.Render(fmt.Sprintf("%d. %s", i+1, ellipsize(problem, 80))))
	}
	fmt.Fprintln(out, menuItemStyle.Render(fmt.Sprintf("%d. Enter custom problem", len(exampleProblems)+1)))
	fmt.Fprintln(out, menuItemStyle.Render("0. Exit"))

	for {
		fmt.Fprint(out, promptStyle.Render(fmt.Sprintf("\nEnter your choice (0-%d): ", len(exampleProblems)+1)))
		if !in.Scan() {
			return in.Err()
		}

		choice, err := strconv.Atoi(strings.TrimSpace(in.Text()))
		if err != nil {
			fmt.Fprintln(out, "Please enter a valid number.")
			continue
		}

		switch {
		case choice == 0:
			fmt.Fprintln(out, "Goodbye!")
			return nil
		case choice >= 1 && choice <= len(exampleProblems):
			if err := streamSolve(cmd.Context(), cmd, cfg, exampleProblems[choice-1]); err != nil {
				fmt.Fprintln(out, err.Error())
			}
		case choice == len(exampleProblems)+1:
			fmt.Fprint(out, promptStyle.Render("Enter your problem: "))
			if !in.Scan() {
				return in.Err()
			}
			problem := strings.TrimSpace(in.Text())
			if problem == "" {
				continue
			}
			if err := streamSolve(cmd.Context(), cmd, cfg, problem); err != nil {
				fmt.Fprintln(out, err.Error())
			}
		default:
			fmt.Fprintln(out, "Invalid choice. Please try again.")
		}
	}
}

func ellipsize(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
