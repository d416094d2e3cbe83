package translator

import (
	"github.com/tidwall/gjson"

	"gcligateway/internal/constants"
)

// buildGenerationConfig maps OpenAI generation parameters to a native
// generationConfig object, applying the §4.7 clamps.
func buildGenerationConfig(rawJSON []byte) map[string]interface{} {
	genConfig := map[string]interface{}{"candidateCount": 1}

	if temp := gjson.GetBytes(rawJSON, "temperature"); temp.Exists() {
		genConfig["temperature"] = temp.Value()
	}
	if topP := gjson.GetBytes(rawJSON, "top_p"); topP.Exists() {
		genConfig["topP"] = topP.Value()
	}

	topKValue := constants.DefaultTopK
	if topK := gjson.GetBytes(rawJSON, "top_k"); topK.Exists() {
		v := int(topK.Int())
		if v < constants.MinTopK {
			v = constants.MinTopK
		}
		if v > constants.MaxTopK {
			v = constants.MaxTopK
		}
		topKValue = v
	}
	genConfig["topK"] = topKValue

	maxTokensValue := 0
	if maxTokens := gjson.GetBytes(rawJSON, "max_tokens"); maxTokens.Exists() {
		maxTokensValue = int(maxTokens.Int())
	}
	if maxCompTokens := gjson.GetBytes(rawJSON, "max_completion_tokens"); maxCompTokens.Exists() {
		maxTokensValue = int(maxCompTokens.Int())
	}
	if maxTokensValue > 0 {
		if maxTokensValue < constants.MinOutputTokens {
			maxTokensValue = constants.MinOutputTokens
		}
		if maxTokensValue > constants.MaxOutputTokens {
			maxTokensValue = constants.MaxOutputTokens
		}
		genConfig["maxOutputTokens"] = maxTokensValue
	}

	if fp := gjson.GetBytes(rawJSON, "frequency_penalty"); fp.Exists() {
		genConfig["frequencyPenalty"] = fp.Value()
	}
	if pp := gjson.GetBytes(rawJSON, "presence_penalty"); pp.Exists() {
		genConfig["presencePenalty"] = pp.Value()
	}
	if n := gjson.GetBytes(rawJSON, "n"); n.Exists() {
		genConfig["candidateCount"] = int(n.Int())
	}
	if seed := gjson.GetBytes(rawJSON, "seed"); seed.Exists() {
		genConfig["seed"] = int(seed.Int())
	}
	if stop := gjson.GetBytes(rawJSON, "stop"); stop.Exists() {
		if seqs := collectStopSequences(stop); len(seqs) > 0 {
			genConfig["stopSequences"] = seqs
		}
	}

	return genConfig
}

func collectStopSequences(stop gjson.Result) []string {
	var seqs []string
	if stop.IsArray() {
		for _, s := range stop.Array() {
			seqs = append(seqs, s.String())
		}
	} else if stop.String() != "" {
		seqs = append(seqs, stop.String())
	}
	return seqs
}
