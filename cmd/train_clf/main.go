package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"textclf/classifier"
	"textclf/db"
	"textclf/dataset"
)

func main() {
	dataPath := flag.String("data", "", "training data file (libsvm or csv)")
	format := flag.String("format", "", "data format: libsvm or csv (default: by extension)")
	algorithm := flag.String("model", "logistic_regression", "classifier to train")
	name := flag.String("name", "", "model name for the run record (default: classifier name)")
	outPath := flag.String("out", "./models/clf.model", "model output path")
	testRatio := flag.Float64("test_ratio", 0.2, "test ratio")
	labelCol := flag.Int("label_col", -1, "csv label column (-1 for last)")
	header := flag.Bool("header", false, "csv file has a header row")
	dim := flag.Int("dim", 0, "libsvm feature dimension (0 to infer)")
	clean := flag.Bool("clean", false, "drop samples with non-finite or extreme features")
	scale := flag.Bool("scale", false, "min/max scale features before training")
	dbPath := flag.String("db", "", "sqlite path for recording the run")
	flag.Parse()

	if *dataPath == "" {
		log.Fatal("data is required")
	}

	batch, labels, err := loadData(*dataPath, *format, *labelCol, *header, *dim)
	if err != nil {
		log.Fatalf("failed to load training data: %v", err)
	}

	if *clean {
		cleaner := dataset.NewCleaner()
		var issues []dataset.QualityIssue
		batch, labels, issues = cleaner.Clean(batch, labels)
		if len(issues) > 0 {
			log.Printf("dropped %d bad samples", cleaner.Stats().Rejected)
		}
		if len(batch) == 0 {
			log.Fatal("no samples left after cleaning")
		}
	}

	trainX, trainY, testX, testY := splitDataset(batch, labels, *testRatio)

	if *scale {
		scaler := &dataset.MinMaxScaler{}
		trainX, err = scaler.FitTransform(trainX)
		if err != nil {
			log.Fatalf("failed to scale training data: %v", err)
		}
		if len(testX) > 0 {
			testX, err = scaler.Transform(testX)
			if err != nil {
				log.Fatalf("failed to scale test data: %v", err)
			}
		}
	}

	classifier.RegisterBuiltins()
	clf, err := classifier.New(*algorithm, classifier.Config{SavePath: *outPath})
	if err != nil {
		log.Fatalf("failed to build classifier: %v", err)
	}

	if err := clf.Fit(trainX, trainY, nil); err != nil {
		log.Fatalf("failed to train model: %v", err)
	}

	if len(testX) > 0 {
		accuracy, err := evaluate(clf, testX, testY)
		if err != nil {
			log.Fatalf("failed to evaluate model: %v", err)
		}
		log.Printf("trained on %d samples, accuracy=%.2f on %d held out", len(trainX), accuracy, len(testX))
	} else {
		log.Printf("trained on %d samples, nothing held out", len(trainX))
	}

	if err := os.MkdirAll(filepath.Dir(*outPath), 0o755); err != nil {
		log.Fatalf("failed to create model dir: %v", err)
	}
	if err := clf.Save(""); err != nil {
		log.Fatalf("failed to save model: %v", err)
	}

	if *dbPath != "" {
		if *name == "" {
			*name = *algorithm
		}
		if err := recordRun(*dbPath, *name, *algorithm, *outPath, trainX, trainY); err != nil {
			log.Fatalf("failed to record run: %v", err)
		}
	}

	fmt.Printf("model saved to %s\n", *outPath)
}

func loadData(path, format string, labelCol int, header bool, dim int) (classifier.Batch, []int, error) {
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".csv":
			format = "csv"
		default:
			format = "libsvm"
		}
	}

	switch format {
	case "csv":
		return dataset.LoadCSV(path, labelCol, header)
	case "libsvm":
		return dataset.LoadLibSVM(path, dim)
	}
	return nil, nil, fmt.Errorf("unknown format %q", format)
}

func splitDataset(batch classifier.Batch, labels []int, testRatio float64) (trainX classifier.Batch, trainY []int, testX classifier.Batch, testY []int) {
	if testRatio < 0 || testRatio >= 1 {
		testRatio = 0.2
	}

	split := int(float64(len(batch)) * (1 - testRatio))
	if split < 1 {
		split = len(batch)
	}
	return batch[:split], labels[:split], batch[split:], labels[split:]
}

func evaluate(clf classifier.Classifier, testX classifier.Batch, testY []int) (float64, error) {
	predicted, err := clf.Predict(testX)
	if err != nil {
		return 0, err
	}

	var correct int
	for i, label := range predicted {
		if label == testY[i] {
			correct++
		}
	}
	return float64(correct) / float64(len(testY)), nil
}

func recordRun(dbPath, name, algorithm, outPath string, trainX classifier.Batch, trainY []int) error {
	if err := db.InitDB(dbPath); err != nil {
		return err
	}
	defer db.CloseDB()

	classes := make(map[int]struct{})
	for _, y := range trainY {
		classes[y] = struct{}{}
	}

	run := &db.TrainingRun{
		ModelName:    name,
		Algorithm:    algorithm,
		Samples:      len(trainX),
		FeatureDim:   trainX[0].Len(),
		Classes:      len(classes),
		ArtifactPath: outPath,
	}
	if err := db.SaveTrainingRun(run); err != nil {
		return err
	}

	rec := &db.ModelRecord{Name: name, Algorithm: algorithm, ArtifactPath: outPath}
	return db.UpsertModelRecord(rec)
}
