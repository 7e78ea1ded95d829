package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/invopop/jsonschema"

	"rulelens/pkg/catalog"
)

var outFile = flag.String("o", "catalog.v1beta1.json", "Output file for the generated schema")

func main() {
	flag.Parse()

	r := &jsonschema.Reflector{
		ExpandedStruct: false,
	}

	jss := r.Reflect(&catalog.Catalog{})
	jss.ID = "https://rulelens.dev/catalog.v1beta1.json"

	jsData, err := json.MarshalIndent(jss, "", "  ")
	if err != nil {
		log.Fatalf("generate JSON schema: %v", err)
	}

	err = os.WriteFile(*outFile, append(jsData, '\n'), 0o600)
	if err != nil {
		log.Fatalf("write schema file: %v", err)
	}
}
