package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"workspace-rag/internal/cli"
)

func main() {
	logrus.SetFormatter(&logrus.JSONFormatter{})

	if err := cli.Execute(); err != nil {
		logrus.WithError(err).Error("command failed")
		os.Exit(1)
	}
}
