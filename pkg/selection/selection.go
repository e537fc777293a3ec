package selection

import (
	"context"
	"fmt"
	"image"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/menta2k/meme-maker/pkg/cropper"
	"github.com/menta2k/meme-maker/pkg/types"
)

const weakLipSignal = 0.10

// BuildCandidates scores an auto-focus crop for every image and, when
// includeMouth is set, a mouth close-up as well. Output order follows the
// input order regardless of scheduling.
func BuildCandidates(ctx context.Context, images []image.Image, names []string, includeMouth bool) ([]types.CropCandidate, error) {
	perImage := make([][]types.CropCandidate, len(images))
	c := cropper.New()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())

	for idx, img := range images {
		name := fmt.Sprintf("image_%d", idx+1)
		if idx < len(names) && names[idx] != "" {
			name = names[idx]
		}

		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			face := c.Tile(img, cropper.AutoFocus(img))
			out := []types.CropCandidate{{
				SourceIndex: idx,
				SourceName:  name,
				Type:        types.CropFace,
				Score:       Score512(face),
			}}

			if includeMouth {
				mouth := c.Tile(img, cropper.MouthCloseupGlobal(img, 0))
				lip := LipRedness512(mouth)
				combined := 0.55*Score512(mouth) + 0.45*lip
				if lip < weakLipSignal {
					combined *= 0.65
				}
				out = append(out, types.CropCandidate{
					SourceIndex: idx,
					SourceName:  name,
					Type:        types.CropMouth,
					Score:       combined,
				})
			}

			perImage[idx] = out
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to score candidates: %w", err)
	}

	var out []types.CropCandidate
	for _, cands := range perImage {
		out = append(out, cands...)
	}
	return out, nil
}

type candidateKey struct {
	source int
	kind   types.CropType
}

// PickTop selects target candidates, preferring one per source image and
// relaxing the per-source quota (1, 2, 3, then unbounded) only as needed.
// Mouth candidates never exceed maxMouth.
func PickTop(candidates []types.CropCandidate, maxMouth, target int) []types.CropCandidate {
	if len(candidates) == 0 || target <= 0 {
		return nil
	}

	ranked := make([]types.CropCandidate, len(candidates))
	copy(ranked, candidates)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	var selected []types.CropCandidate
	for _, quota := range []int{1, 2, 3, target} {
		if len(selected) >= target {
			break
		}
		selected = fill(ranked, selected, quota, maxMouth, target)
	}

	if len(selected) == 0 {
		selected = []types.CropCandidate{ranked[0]}
	}
	chosen := len(selected)
	for i := 0; len(selected) < target; i++ {
		selected = append(selected, selected[i%chosen])
	}
	return selected[:target]
}

func fill(ranked, selected []types.CropCandidate, quota, maxMouth, target int) []types.CropCandidate {
	perSource := map[int]int{}
	keys := map[candidateKey]bool{}
	mouths := 0
	for _, s := range selected {
		perSource[s.SourceIndex]++
		keys[candidateKey{s.SourceIndex, s.Type}] = true
		if s.Type == types.CropMouth {
			mouths++
		}
	}

	for _, cand := range ranked {
		if len(selected) >= target {
			break
		}
		key := candidateKey{cand.SourceIndex, cand.Type}
		if keys[key] || perSource[cand.SourceIndex] >= quota {
			continue
		}
		if cand.Type == types.CropMouth && mouths >= maxMouth {
			continue
		}
		selected = append(selected, cand)
		keys[key] = true
		perSource[cand.SourceIndex]++
		if cand.Type == types.CropMouth {
			mouths++
		}
	}
	return selected
}
