package main

import (
	"context"
	"fmt"
)

// remind sends the due soon digests now and waits for the emails to go out.
func (cli *commandLine) remind() error {
	sent, err := cli.reminders.Run(context.Background())
	if err != nil {
		return err
	}
	if w, ok := cli.mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	fmt.Printf("%d reminder(s) sent\n", sent)
	return nil
}
