// Command lunarcal maintains the month ledger and queries the calendar from
// the terminal. It shares the server's database and configuration.
package main

func main() {
	Execute()
}
