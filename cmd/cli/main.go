package main

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"shipyard/internal/cli/cmd"
)

func main() {
	// 带参数时直接执行一次，否则进入交互模式
	if len(os.Args) > 1 {
		rootCmd := cmd.NewRootCommand()
		rootCmd.SetArgs(os.Args[1:])
		if err := rootCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}
	startInteractiveMode()
}

func startInteractiveMode() {
	scanner := bufio.NewScanner(os.Stdin)
	fmt.Println("Shipyard CLI - Type 'help' to show help, 'exit' or 'quit' to quit")
	fmt.Print(">> ")

	for scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input == "exit" || input == "quit" {
			break
		}
		if input == "" {
			fmt.Print(">> ")
			continue
		}

		rootCmd := cmd.NewRootCommand()
		if input == "help" {
			rootCmd.Help()
			fmt.Print(">> ")
			continue
		}

		args := strings.Fields(input)
		found, _, err := rootCmd.Find(args)
		if err != nil || found == nil || found == rootCmd {
			if err := executeShellCommand(args[0], args[1:]); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			fmt.Print(">> ")
			continue
		}
		rootCmd.SetArgs(args)
		if err := rootCmd.Execute(); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
		fmt.Print(">> ")
	}
}

func executeShellCommand(cmdName string, cmdArgs []string) error {
	c := exec.Command(cmdName, cmdArgs...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	return c.Run()
}
