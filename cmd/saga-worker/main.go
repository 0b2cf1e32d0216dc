package main

import (
	"github.com/architeacher/svc-commerce-saga/internal/runtime"
)

func main() {
	runtime.NewSagaWorker().Run()
}
